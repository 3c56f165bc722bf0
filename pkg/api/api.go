package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"tweetapp/pkg/model"
	"tweetapp/pkg/services"

	"github.com/ServiceWeaver/weaver"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	BASE_PATH = "/api/v1.0"

	HEADER_LOGGED_IN_USER = "loggedInUser"
	HEADER_TWEET_ID       = "tweetId"
)

type errorResponse struct {
	Response string `json:"response"`
}

type updateRequest struct {
	TweetID   string `json:"tweetId"`
	TweetText string `json:"tweetText"`
}

type replyRequest struct {
	Comment string `json:"comment"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type newPasswordRequest struct {
	NewPassword string `json:"newPassword"`
	Contact     string `json:"contact"`
}

type handler struct {
	logger *slog.Logger
	tweets services.TweetService
	users  services.UserService
}

// NewHandler returns the REST api for tweets and users, rooted at BASE_PATH.
func NewHandler(logger *slog.Logger, tweets services.TweetService, users services.UserService) http.Handler {
	h := &handler{logger: logger, tweets: tweets, users: users}
	mux := http.NewServeMux()

	// tweets
	mux.Handle("GET "+BASE_PATH+"/tweets/all", instrument("list_all", h.listAll))
	mux.Handle("GET "+BASE_PATH+"/tweets/{username}", instrument("list_by_author", h.listByAuthor))
	mux.Handle("POST "+BASE_PATH+"/tweets/{username}/add", instrument("post", h.post))
	mux.Handle("GET "+BASE_PATH+"/tweets/{username}/{tweetId}", instrument("get", h.get))
	mux.Handle("PUT "+BASE_PATH+"/tweets/{username}/update", instrument("update", h.update))
	mux.Handle("DELETE "+BASE_PATH+"/tweets/{username}/delete", instrument("delete", h.delete))
	mux.Handle("PUT "+BASE_PATH+"/tweets/{username}/like/{tweetId}", instrument("like", h.like))
	mux.Handle("PUT "+BASE_PATH+"/tweets/{username}/dislike/{tweetId}", instrument("dislike", h.dislike))
	mux.Handle("POST "+BASE_PATH+"/tweets/{username}/reply/{tweetId}", instrument("reply", h.reply))

	// users
	mux.Handle("POST "+BASE_PATH+"/tweets/register", instrument("register", h.register))
	mux.Handle("POST "+BASE_PATH+"/tweets/login", instrument("login", h.login))
	mux.Handle("PUT "+BASE_PATH+"/tweets/{username}/forgot", instrument("forgot", h.changePassword))
	mux.Handle("GET "+BASE_PATH+"/tweets/users/all", instrument("list_users", h.listUsers))
	mux.Handle("GET "+BASE_PATH+"/tweets/user/search/{username}", instrument("search_users", h.searchUsers))
	mux.Handle("GET "+BASE_PATH+"/tweets/user/profile/{username}", instrument("profile", h.profile))

	return mux
}

func instrument(label string, fn func(http.ResponseWriter, *http.Request)) http.Handler {
	return weaver.InstrumentHandlerFunc(label, fn)
}

func (h *handler) listAll(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	resp, err := h.tweets.ListAll(r.Context(), viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) listByAuthor(w http.ResponseWriter, r *http.Request) {
	viewer, ok := h.viewer(w, r)
	if !ok {
		return
	}
	resp, err := h.tweets.ListByAuthor(r.Context(), r.PathValue("username"), viewer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username := r.PathValue("username")

	var tweet model.Tweet
	if !h.decode(w, r, &tweet) {
		return
	}

	trace.SpanFromContext(ctx).AddEvent("handling new tweet",
		trace.WithAttributes(
			attribute.String("username", username),
			attribute.Int("text_len", len(tweet.TweetText)),
		))

	if tweet.FirstName == "" || tweet.LastName == "" {
		h.fillAuthorNames(r, username, &tweet)
	}

	stored, err := h.tweets.Post(ctx, username, tweet)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, stored)
}

// fillAuthorNames copies the author's names into blank tweet fields. Tweets
// can be posted by authors the directory does not know.
func (h *handler) fillAuthorNames(r *http.Request, username string, tweet *model.Tweet) {
	if h.users == nil {
		return
	}
	author, err := h.users.Profile(r.Context(), username)
	if err != nil {
		h.logger.Debug("author profile not available", "username", username, "msg", err.Error())
		return
	}
	if tweet.FirstName == "" {
		tweet.FirstName = author.FirstName
	}
	if tweet.LastName == "" {
		tweet.LastName = author.LastName
	}
}

func (h *handler) get(w http.ResponseWriter, r *http.Request) {
	resp, err := h.tweets.Get(r.Context(), r.PathValue("tweetId"), r.PathValue("username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.tweets.Update(r.Context(), r.PathValue("username"), req.TweetID, req.TweetText)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *handler) delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.tweets.Delete(r.Context(), r.Header.Get(HEADER_TWEET_ID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, deleted)
}

func (h *handler) like(w http.ResponseWriter, r *http.Request) {
	updated, err := h.tweets.Like(r.Context(), r.PathValue("username"), r.PathValue("tweetId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *handler) dislike(w http.ResponseWriter, r *http.Request) {
	updated, err := h.tweets.Dislike(r.Context(), r.PathValue("username"), r.PathValue("tweetId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *handler) reply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if !h.decode(w, r, &req) {
		return
	}
	updated, err := h.tweets.Reply(r.Context(), r.PathValue("username"), r.PathValue("tweetId"), req.Comment)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, updated)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var user model.User
	if !h.decode(w, r, &user) {
		return
	}
	registered, err := h.users.Register(r.Context(), user)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, registered)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req newPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	user, err := h.users.ChangePassword(r.Context(), r.PathValue("username"), req.NewPassword, req.Contact)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	all, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, all)
}

func (h *handler) searchUsers(w http.ResponseWriter, r *http.Request) {
	found, err := h.users.SearchUsers(r.Context(), r.PathValue("username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, found)
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Profile(r.Context(), r.PathValue("username"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, user)
}

// viewer returns the loggedInUser header, answering 400 when it is missing.
// A present but empty header is a viewer that likes nothing.
func (h *handler) viewer(w http.ResponseWriter, r *http.Request) (string, bool) {
	values := r.Header.Values(HEADER_LOGGED_IN_USER)
	if len(values) == 0 {
		h.logger.Debug("missing request header", "path", r.URL.Path, "header", HEADER_LOGGED_IN_USER)
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Response: "missing header " + HEADER_LOGGED_IN_USER})
		return "", false
	}
	return values[0], true
}

func (h *handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		h.logger.Debug("error decoding request body", "path", r.URL.Path, "msg", err.Error())
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Response: "malformed request body"})
		return false
	}
	return true
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("error handling request", "method", r.Method, "path", r.URL.Path, "msg", msg)
		msg = "application has faced an issue"
	}
	h.writeJSON(w, status, errorResponse{Response: msg})
}

// StatusOf maps a service error to its http status code.
func StatusOf(err error) int {
	var e model.Error
	if !errors.As(err, &e) {
		return http.StatusInternalServerError
	}
	switch e.Kind {
	case model.KIND_TWEET_NOT_FOUND, model.KIND_USER_NOT_FOUND:
		return http.StatusNotFound
	case model.KIND_INVALID_USERNAME:
		return http.StatusUnprocessableEntity
	case model.KIND_USERNAME_TAKEN:
		return http.StatusConflict
	case model.KIND_BAD_CREDENTIALS:
		return http.StatusUnauthorized
	case model.KIND_PASSWORD_CHANGE:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("error encoding response", "status", status, "msg", err.Error())
	}
}
