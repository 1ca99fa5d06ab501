package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/matthew-ngzc/campus-chow/configs"
	chttp "github.com/matthew-ngzc/campus-chow/internal/adapter/http"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/queue"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/repo"
	"github.com/matthew-ngzc/campus-chow/internal/logging"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init("payments-service", cfg.App.LogFile, cfg.App.LogLevel)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, nil, err
	}

	store, err := repo.Open(cfg.Postgres.DSN, repo.PoolConfig{
		MaxOpen:     cfg.Postgres.MaxOpenConns,
		MaxIdle:     cfg.Postgres.MaxIdleConns,
		MaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	pingCtx, cancelPing := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelPing()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	conn := queue.NewConn(queue.ConnConfig{
		URL:            cfg.Rabbit.URL,
		MaxReconnects:  cfg.Rabbit.MaxReconnects,
		ReconnectDelay: cfg.Rabbit.ReconnectDelay,
	}, logging.New("rabbit"))
	if err := conn.Connect(); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, err
	}
	if err := queue.DeclareTopology(ch, cfg.Rabbit.Exchange, cfg.Rabbit.InboxQueue, usecase.PaymentsBindPatterns); err != nil {
		return nil, nil, err
	}

	paymentRepo := repo.NewPostgresPaymentRepo(store.DB())
	transactionRepo := repo.NewPostgresTransactionRepo(store.DB())
	outboxRepo := repo.NewPostgresOutboxRepo(store.DB())
	inboxRepo := repo.NewPostgresInboxRepo(store.DB())

	core := usecase.NewPayments(store, paymentRepo, transactionRepo, outboxRepo,
		cfg.Rabbit.Exchange, loc, logging.New("payments"))

	workerCtx, stopWorkers := context.WithCancel(context.Background())

	publisher := queue.NewPublisher(outboxRepo, conn, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, logging.New("outbox"))
	go publisher.Run(workerCtx)

	recorder := queue.NewRecorder(inboxRepo, conn, cfg.Rabbit.InboxQueue, cfg.Rabbit.Prefetch, logging.New("inbox-recorder"))
	if err := recorder.Start(workerCtx); err != nil {
		stopWorkers()
		return nil, nil, err
	}

	dispatcher := queue.NewDispatcher(inboxRepo, core, cfg.Inbox.BatchSize, cfg.Inbox.PollInterval, logging.New("inbox-dispatcher"))
	go dispatcher.Run(workerCtx)

	handler := chttp.NewPaymentsHandler(core, loc)
	router := chttp.NewPaymentsRouter(handler, cfg.App.InternalKey, func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			c.JSON(503, gin.H{"ok": false})
			return
		}
		c.JSON(200, gin.H{"ok": true})
	})

	cleanup := func() {
		stopWorkers()
		_ = conn.Close()
		_ = store.Close()
	}

	return &App{Router: router}, cleanup, nil
}
