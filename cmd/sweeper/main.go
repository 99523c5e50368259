package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"roulette/pkg/config"
	"roulette/pkg/db"
	"roulette/pkg/logger"
	"roulette/pkg/mq"
	"roulette/pkg/redis"
	"roulette/services/match/event"
	"roulette/services/match/repository"
	"roulette/services/match/service"
)

const webPort = 8090

// Config wires the sweeper: a ticker that runs the cleanup sweep plus a
// small admin mux to trigger it by hand and check liveness.
type Config struct {
	matchService *service.MatchService
	cfg          *config.Config
	log          zerolog.Logger
}

func main() {
	cfg := config.Load()
	logg := logger.New("match-sweeper")

	redisClient, err := redis.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		log.Panic("Failed to connect to Redis: ", err)
	}

	gormDB, err := db.ConnectMySQL(cfg.MySQLDSN)
	if err != nil {
		log.Panic("Failed to connect to MySQL: ", err)
	}

	mqClient, err := mq.ConnectToRabbitMQ(cfg.RabbitURL)
	if err != nil {
		log.Panic("Failed to connect to RabbitMQ: ", err)
	}
	defer mqClient.Conn.Close()

	if err := mqClient.DeclareExchange(mq.ExchangeMatchEvents, mq.ExchangeTypeFanout); err != nil {
		log.Panic("Failed to declare match event exchange: ", err)
	}

	pairRepo := repository.NewPairRepository(gormDB)
	emitter := event.NewEmitter(mqClient, logg)

	matchService := service.NewMatchService(
		redis.NewLockManager(redisClient),
		redis.NewPendingQueue(redisClient),
		pairRepo,
		nil, // sweeps never look at profiles
		emitter,
		service.Config{
			LockTTL:        cfg.LockTTL,
			EndedRetention: cfg.EndedRetention,
		},
		logg,
	)

	app := &Config{matchService: matchService, cfg: cfg, log: logg}

	go app.runTicker()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", webPort),
		Handler: app.routes(),
	}

	logg.Info().Int("port", webPort).Dur("interval", cfg.SweepInterval).Msg("sweeper started")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}

func (app *Config) runTicker() {
	ticker := time.NewTicker(app.cfg.SweepInterval)
	defer ticker.Stop()

	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		if _, err := app.sweep(ctx); err != nil {
			app.log.Error().Err(err).Msg("scheduled sweep failed")
		}
		cancel()
	}
}

func (app *Config) sweep(ctx context.Context) (*service.SweepResult, error) {
	return app.matchService.RunCleanupSweep(ctx,
		app.cfg.PairInactiveAfter,
		app.cfg.PairMaxDuration,
		app.cfg.PendingStaleAfter,
	)
}
