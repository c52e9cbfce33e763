package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/versevilla/forum/config"
	"github.com/versevilla/forum/models"
	"github.com/versevilla/forum/moderation"
	"github.com/versevilla/forum/realtime"
	"github.com/versevilla/forum/routes"
	"github.com/versevilla/forum/services"
	"github.com/versevilla/forum/store"
	"github.com/versevilla/forum/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	log := utils.InitLogger(cfg)
	defer func() { _ = log.Sync() }()

	db := config.InitDatabase(models.All()...)

	rdb, err := utils.NewRedisClient(cfg)
	if err != nil {
		log.Warn("redis unavailable, cache and relay degrade to no-ops until it recovers", zap.Error(err))
	}
	cache := utils.NewCache(rdb, log)

	var classifier moderation.Classifier
	if cfg.ClassifierAPIKey != "" {
		classifier = moderation.NewGeminiClient(&http.Client{}, cfg.ClassifierBaseURL, cfg.ClassifierModel, cfg.ClassifierAPIKey)
	} else {
		log.Info("no classifier API key configured, admission gate allows everything")
	}
	gate := moderation.NewGate(classifier, cfg.ClassifierTimeout(), log)

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, log)
	var broadcaster services.Broadcaster = dispatcher
	var relay *realtime.Relay
	if cfg.RedisRelayEnabled {
		relay = realtime.NewRelay(dispatcher, rdb, cfg.RedisRelayChannel, log)
		broadcaster = relay
	}

	r := routes.SetupRouter(routes.Deps{
		Config:      cfg,
		Log:         log,
		Store:       store.New(db),
		Gate:        gate,
		Broadcaster: broadcaster,
		Registry:    registry,
		Cache:       cache,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if relay != nil {
		g.Go(func() error {
			err := relay.Run(gctx)
			relay.Wait()
			return err
		})
	}
	g.Go(func() error {
		log.Info("starting server", zap.String("port", cfg.AppPort))
		return utils.GraceServer(gctx, ":"+cfg.AppPort, r, log, registry.CloseAll)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
	log.Info("server stopped")
}
