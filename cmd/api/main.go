package main

import (
	"fmt"
	"log"
	"net/http"

	"roulette/pkg/config"
	"roulette/pkg/db"
	"roulette/pkg/logger"
	"roulette/pkg/mq"
	"roulette/pkg/redis"
	"roulette/services/match/bridge"
	"roulette/services/match/event"
	"roulette/services/match/handler"
	"roulette/services/match/repository"
	"roulette/services/match/service"
	"roulette/services/match/transport"
)

func main() {
	cfg := config.Load()
	logg := logger.New("match-api")

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
	if err := pairRepo.InitDB(); err != nil {
		log.Panic("Failed to migrate pairs table: ", err)
	}

	locks := redis.NewLockManager(redisClient)
	queue := redis.NewPendingQueue(redisClient)
	profiles := bridge.NewHTTPProfileClient(cfg.UserServiceURL)
	emitter := event.NewEmitter(mqClient, logg)

	matchService := service.NewMatchService(locks, queue, pairRepo, profiles, emitter, service.Config{
		LockTTL:             cfg.LockTTL,
		CandidateSampleSize: cfg.CandidateSampleSize,
		RandomPolicy:        cfg.RandomPolicy,
		RecentPartnerWindow: cfg.RecentPartnerWindow,
		TieWindow:           cfg.TieWindow,
		OvercrowdThreshold:  cfg.OvercrowdThreshold,
		EndedRetention:      cfg.EndedRetention,
	}, logg)

	health := service.NewHealthMonitor(queue, cfg.OvercrowdThreshold, cfg.BalanceMinRatio)

	matchHandler := handler.NewMatchHandler(matchService, health, logg)
	socketHandler := handler.NewSocketHandler(matchService, cfg.MatchWaitTimeout, logg)

	consumer := event.NewConsumer(mqClient, socketHandler, logg)
	if err := consumer.StartListening(); err != nil {
		log.Panic("Failed to start match event consumer: ", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.WebPort),
		Handler: transport.NewRouter(matchHandler, socketHandler),
	}

	logg.Info().Int("port", cfg.WebPort).Msg("match service started")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
