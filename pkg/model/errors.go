package model

import (
	"errors"
	"fmt"

	"github.com/ServiceWeaver/weaver"
)

type ErrorKind int

const (
	KIND_STORAGE ErrorKind = iota
	KIND_TWEET_NOT_FOUND
	KIND_INVALID_USERNAME
	KIND_USER_NOT_FOUND
	KIND_USERNAME_TAKEN
	KIND_BAD_CREDENTIALS
	KIND_PASSWORD_CHANGE
)

// Error is returned by the tweet and user services. It embeds
// weaver.AutoMarshal so that its kind survives a remote component call.
type Error struct {
	weaver.AutoMarshal
	Kind ErrorKind
	Msg  string
}

func (e Error) Error() string {
	return e.Msg
}

// Is matches any Error of the same kind, so errors.Is(err, ErrTweetNotFound)
// holds regardless of the message.
func (e Error) Is(target error) bool {
	t, ok := target.(Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrTweetNotFound   = Error{Kind: KIND_TWEET_NOT_FOUND, Msg: "this tweet does not exist anymore"}
	ErrInvalidUsername = Error{Kind: KIND_INVALID_USERNAME, Msg: "username/loginId provided is invalid"}
	ErrUserNotFound    = Error{Kind: KIND_USER_NOT_FOUND, Msg: "user does not exist"}
	ErrUsernameTaken   = Error{Kind: KIND_USERNAME_TAKEN, Msg: "username already exists"}
	ErrBadCredentials  = Error{Kind: KIND_BAD_CREDENTIALS, Msg: "bad credentials"}
	ErrPasswordChange  = Error{Kind: KIND_PASSWORD_CHANGE, Msg: "unable to change password"}
)

// StorageError wraps a persistence gateway failure for op.
func StorageError(op string, err error) error {
	return Error{Kind: KIND_STORAGE, Msg: fmt.Sprintf("storage error in %s: %s", op, err.Error())}
}

// KindOf reports the kind of err, defaulting to KIND_STORAGE for errors that
// did not originate in the services.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KIND_STORAGE
}
