// userwatch tails the users collection through a live collection view and
// logs every snapshot. Handy for watching convergence while other clients
// write concurrently.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/userdesk/backend/internal/config"
	"github.com/userdesk/backend/internal/liveview"
	"github.com/userdesk/backend/internal/logging"
	"github.com/userdesk/backend/internal/models"
	"github.com/userdesk/backend/internal/services"
	"github.com/userdesk/backend/internal/store"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		logger.Error("store init failed", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	view := liveview.NewCollectionView(st, services.UsersCollection, logger)
	view.OnChange(func(list []models.UserProfile) {
		names := make([]string, 0, len(list))
		for _, p := range list {
			names = append(names, p.Username)
		}
		logger.Info("snapshot applied", "count", len(list), "usernames", strings.Join(names, ", "))
	})

	if err := view.Start(ctx); err != nil {
		logger.Error("subscription failed", "error", err)
		os.Exit(1)
	}
	defer view.Stop()

	logger.Info("watching users collection", "store", cfg.StoreBackend)
	<-ctx.Done()

	if err := view.Err(); err != nil {
		logger.Error("watch ended with error", "error", err)
		os.Exit(1)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreFirestore:
		fs, err := store.NewFirestore(ctx, store.FirestoreConfig{
			ProjectID:       cfg.FirebaseProjectID,
			CredentialsJSON: cfg.FirebaseCredentialsJSON,
		})
		if err != nil {
			return nil, nil, err
		}
		return fs, func() { fs.Close() }, nil
	case config.StoreMongo:
		mg, err := store.NewMongo(ctx, cfg.MongoURI, cfg.MongoDBName)
		if err != nil {
			return nil, nil, err
		}
		return mg, func() { mg.Close(context.Background()) }, nil
	case config.StoreMemory:
		return store.NewMemory(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
