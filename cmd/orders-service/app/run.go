package app

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/matthew-ngzc/campus-chow/configs"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/cache"
	chttp "github.com/matthew-ngzc/campus-chow/internal/adapter/http"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/menu"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/payapi"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/queue"
	"github.com/matthew-ngzc/campus-chow/internal/adapter/repo"
	"github.com/matthew-ngzc/campus-chow/internal/logging"
	"github.com/matthew-ngzc/campus-chow/internal/scheduler"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init("orders-service", cfg.App.LogFile, cfg.App.LogLevel)
	log := logging.Base()

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

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Warn("redis unavailable, quote cache disabled", "err", err)
		_ = rdb.Close()
		rdb = nil
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
	if err := queue.DeclareTopology(ch, cfg.Rabbit.Exchange, cfg.Rabbit.InboxQueue, usecase.OrdersBindPatterns); err != nil {
		return nil, nil, err
	}

	orderRepo := repo.NewPostgresOrderRepo(store.DB())
	outboxRepo := repo.NewPostgresOutboxRepo(store.DB())
	inboxRepo := repo.NewPostgresInboxRepo(store.DB())

	var quotes *cache.MenuQuoteCache
	if rdb != nil {
		quotes = cache.NewMenuQuoteCache(rdb, cfg.Redis.QuoteTTL)
	}
	menuClient := menu.NewClient(cfg.Orders.MenuBaseURL, cfg.Orders.MenuTimeout, quotes, logging.New("menu"))
	payClient := payapi.NewClient(cfg.Orders.PaymentsBaseURL, cfg.App.InternalKey, 5*time.Second)

	core := usecase.NewOrders(store, orderRepo, outboxRepo, menuClient, payClient, usecase.OrdersConfig{
		Exchange:         cfg.Rabbit.Exchange,
		Location:         loc,
		DeliveryFeeCents: cfg.Orders.DeliveryFeeCents,
		DeadlineBefore:   cfg.Orders.PaymentDeadlineBefore,
	}, logging.New("orders"))

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

	sched, err := scheduler.New(core, loc, cfg.Orders.ReminderBefore, cfg.Orders.AutoCancelBefore, logging.New("scheduler"))
	if err != nil {
		stopWorkers()
		return nil, nil, err
	}
	sched.Start()

	handler := chttp.NewOrdersHandler(core, loc)
	router := chttp.NewOrdersRouter(handler, cfg.App.InternalKey, func(c *gin.Context) {
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
		<-sched.Stop().Done()
		_ = conn.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		_ = store.Close()
	}

	return &App{Router: router}, cleanup, nil
}
