package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"tweetapp/pkg/services"

	"github.com/ServiceWeaver/weaver"
)

type server struct {
	weaver.Implements[weaver.Main]
	tweetService weaver.Ref[services.TweetService]
	userService  weaver.Ref[services.UserService]
	_            weaver.Ref[services.NotificationConsumer]
	lis          weaver.Listener `weaver:"tweetapp"`
}

func Serve(ctx context.Context, s *server) error {
	logger := s.Logger(ctx)
	handler := NewHandler(logger, s.tweetService.Get(), s.userService.Get())
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("tweetapp api available", "addr", s.lis, "base_path", BASE_PATH)
	err := srv.Serve(s.lis)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
