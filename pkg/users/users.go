package users

import (
	"context"
	"log/slog"
	"strings"

	sn_metrics "tweetapp/pkg/metrics"
	"tweetapp/pkg/model"
)

type Store interface {
	FindByUsername(ctx context.Context, username string) (model.User, bool, error)
	FindAll(ctx context.Context) ([]model.User, error)
	Insert(ctx context.Context, user model.User) error
	Save(ctx context.Context, user model.User) error
}

// Cache holds user profiles in front of the Store. It is never authoritative.
type Cache interface {
	Get(ctx context.Context, username string) (model.User, bool, error)
	Set(ctx context.Context, user model.User) error
	Delete(ctx context.Context, username string) error
}

// Directory registers users and matches their credentials. Passwords are
// compared as opaque strings.
type Directory struct {
	store  Store
	cache  Cache
	logger *slog.Logger
}

// NewDirectory returns a directory over store. cache may be nil.
func NewDirectory(store Store, cache Cache, logger *slog.Logger) *Directory {
	return &Directory{store: store, cache: cache, logger: logger}
}

func (d *Directory) Register(ctx context.Context, user model.User) (model.User, error) {
	d.logger.Debug("entering Register", "username", user.Username)
	if strings.TrimSpace(user.Username) == "" {
		return model.User{}, model.ErrInvalidUsername
	}
	_, exists, err := d.store.FindByUsername(ctx, user.Username)
	if err != nil {
		d.logger.Error("error finding user", "username", user.Username, "msg", err.Error())
		return model.User{}, model.StorageError("register", err)
	}
	if exists {
		d.logger.Error("username is not available", "username", user.Username)
		return model.User{}, model.ErrUsernameTaken
	}
	if err := d.store.Insert(ctx, user); err != nil {
		d.logger.Error("error inserting new user", "username", user.Username, "msg", err.Error())
		return model.User{}, model.StorageError("register", err)
	}
	return withoutSecrets(user, false), nil
}

func (d *Directory) Login(ctx context.Context, username string, password string) (model.User, error) {
	user, found, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		d.logger.Error("error finding user", "username", username, "msg", err.Error())
		return model.User{}, model.StorageError("login", err)
	}
	if !found || user.Password != password {
		d.logger.Debug("bad credentials", "username", username)
		return model.User{}, model.ErrBadCredentials
	}
	return withoutSecrets(user, false), nil
}

// Profile reads a user through the cache.
func (d *Directory) Profile(ctx context.Context, username string) (model.User, error) {
	if d.cache != nil {
		user, found, err := d.cache.Get(ctx, username)
		if err != nil {
			d.logger.Warn("error reading user profile from cache", "username", username, "msg", err.Error())
		} else if found {
			sn_metrics.UserCacheHits.Inc()
			return user, nil
		}
		sn_metrics.UserCacheMisses.Inc()
	}

	user, found, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		d.logger.Error("error finding user", "username", username, "msg", err.Error())
		return model.User{}, model.StorageError("profile", err)
	}
	if !found {
		return model.User{}, model.ErrUserNotFound
	}
	user = withoutSecrets(user, false)
	if d.cache != nil {
		if err := d.cache.Set(ctx, user); err != nil {
			d.logger.Warn("error writing user profile to cache", "username", username, "msg", err.Error())
		}
	}
	return user, nil
}

func (d *Directory) ListUsers(ctx context.Context) ([]model.User, error) {
	all, err := d.store.FindAll(ctx)
	if err != nil {
		d.logger.Error("error reading users", "msg", err.Error())
		return nil, model.StorageError("list_users", err)
	}
	users := make([]model.User, 0, len(all))
	for _, u := range all {
		users = append(users, withoutSecrets(u, true))
	}
	return users, nil
}

// SearchUsers returns the users whose username contains query, ignoring case.
func (d *Directory) SearchUsers(ctx context.Context, query string) ([]model.User, error) {
	all, err := d.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	users := []model.User{}
	for _, u := range all {
		if strings.Contains(strings.ToLower(u.Username), query) {
			users = append(users, u)
		}
	}
	return users, nil
}

// ChangePassword sets a new password when contact matches the stored contact
// number, ignoring case.
func (d *Directory) ChangePassword(ctx context.Context, username string, newPassword string, contact string) (model.User, error) {
	user, found, err := d.store.FindByUsername(ctx, username)
	if err != nil {
		d.logger.Error("error finding user", "username", username, "msg", err.Error())
		return model.User{}, model.StorageError("change_password", err)
	}
	if !found || !strings.EqualFold(user.ContactNum, contact) {
		d.logger.Error("cannot change password", "username", username)
		return model.User{}, model.ErrPasswordChange
	}
	user.Password = newPassword
	if err := d.store.Save(ctx, user); err != nil {
		d.logger.Error("error saving user", "username", username, "msg", err.Error())
		return model.User{}, model.StorageError("change_password", err)
	}
	if d.cache != nil {
		if err := d.cache.Delete(ctx, username); err != nil {
			d.logger.Warn("error evicting user profile from cache", "username", username, "msg", err.Error())
		}
	}
	d.logger.Info("password updated", "username", username)
	return withoutSecrets(user, false), nil
}

func withoutSecrets(user model.User, hideContact bool) model.User {
	user.Password = ""
	if hideContact {
		user.ContactNum = ""
	}
	return user
}
