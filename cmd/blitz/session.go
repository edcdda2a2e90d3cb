package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/blitz-go/blitz/internal/config"
	"github.com/blitz-go/blitz/pkg/publicstore"
	"github.com/blitz-go/blitz/pkg/session"
	"github.com/blitz-go/blitz/pkg/storage"
)

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect and follow session state",
	}
	cmd.AddCommand(sessionWatchCmd())
	return cmd
}

func sessionWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow public-data changes on the durable storage backend",
		Long: `Open the configured durable storage backend and print every
public-data change announced on it until interrupted.

The backend is selected by BLITZ_STORAGE (memory, file, redis); the
file backend makes this useful for watching another local process,
the redis backend for watching across machines.

Examples:
  BLITZ_STORAGE=file BLITZ_STORAGE_PATH=.blitz-session blitz session watch
  BLITZ_STORAGE=redis BLITZ_REDIS_ADDR=redis:6379 blitz session watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			st, cleanup, err := openStorage(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			store, err := publicstore.New(st, publicstore.NewJar(),
				publicstore.WithPrefix(cfg.CookiePrefix))
			if err != nil {
				return err
			}
			defer store.Close()

			unsubscribe := store.Subscribe(func(pd session.PublicData) {
				if pd.Authenticated() {
					fmt.Printf("session changed: user=%s roles=%v\n", pd.UserID, pd.RoleList())
					return
				}
				fmt.Println("session changed: anonymous")
			})
			defer unsubscribe()

			fmt.Printf("watching %s storage (ctrl-c to stop)\n", cfg.Storage)
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			<-ctx.Done()
			return nil
		},
	}
}

// openStorage builds the backend named by cfg.Storage. The cleanup
// func closes whatever was opened.
func openStorage(cfg config.Config) (storage.Store, func(), error) {
	switch cfg.Storage {
	case "memory":
		st := storage.NewMemoryStore()
		return st, func() { st.Close() }, nil

	case "file":
		st, err := storage.NewFileStore(cfg.StoragePath,
			storage.WithPollInterval(cfg.PollInterval))
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		st := storage.NewRedisStore(client, cfg.CookiePrefix)
		return st, func() { st.Close(); client.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
