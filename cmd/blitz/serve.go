package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"

	"github.com/blitz-go/blitz/pkg/broadcast"
	"github.com/blitz-go/blitz/pkg/session"
	"github.com/blitz-go/blitz/pkg/sessionserver"
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		jwtSecret string
		users     []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the reference session server",
		Long: `Run the reference session server to develop client bindings against.

Users are declared as email:password[:role]. When --jwt-secret is
set, session credentials are stateless signed tokens; otherwise
opaque handles with server-side state (and immediate logout).

A broadcast relay is mounted at /broadcast for contexts that share
no durable storage.

Examples:
  blitz serve --user alice@example.com:secret:admin
  blitz serve --addr :8080 --jwt-secret "$SESSION_SECRET"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(addr, jwtSecret, users)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":3000", "Address to listen on")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", "", "Sign credentials instead of storing them")
	cmd.Flags().StringArrayVar(&users, "user", []string{"demo@example.com:password:admin"},
		"User as email:password[:role] (repeatable)")

	return cmd
}

type serveUser struct {
	password string
	role     string
}

func parseUsers(specs []string) (map[string]serveUser, error) {
	users := make(map[string]serveUser, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 3)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("user %q is not email:password[:role]", spec)
		}
		u := serveUser{password: parts[1]}
		if len(parts) == 3 {
			u.role = parts[2]
		}
		users[parts[0]] = u
	}
	return users, nil
}

func runServe(addr, jwtSecret string, userSpecs []string) error {
	users, err := parseUsers(userSpecs)
	if err != nil {
		return err
	}

	var issuer sessionserver.Issuer
	if jwtSecret != "" {
		issuer, err = sessionserver.NewJWTIssuer([]byte(jwtSecret))
		if err != nil {
			return err
		}
	} else {
		issuer = sessionserver.NewOpaqueIssuer()
	}

	login := func(_ context.Context, email, password string) (session.PublicData, error) {
		u, ok := users[email]
		if !ok || u.password != password {
			return session.PublicData{}, session.ErrUnauthorized
		}
		return session.PublicData{UserID: email, Role: u.role}, nil
	}

	srv := sessionserver.New(issuer, login)
	srv.Resolve("whoami", func(_ context.Context, _ json.RawMessage, sess *sessionserver.Session) (any, error) {
		if !sess.Authenticated() {
			return nil, session.ErrUnauthorized
		}
		return sess.PublicData, nil
	})

	r := chi.NewRouter()
	r.Handle("/broadcast", broadcast.NewHub())
	r.Mount("/", srv)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("session server listening", "addr", addr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
