package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/matthew-ngzc/campus-chow/internal/adapter/observ"
	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

// Publisher drains the outbox: claim a batch, publish each row, mark it
// published. A publish that succeeds but crashes before the mark is re-sent
// on the next tick, so consumers must dedup on message id.
type Publisher struct {
	outbox       usecase.OutboxRepo
	conn         *Conn
	batchSize    int
	pollInterval time.Duration
	log          *slog.Logger
}

func NewPublisher(outbox usecase.OutboxRepo, conn *Conn, batchSize int, pollInterval time.Duration, log *slog.Logger) *Publisher {
	if batchSize <= 0 {
		batchSize = 100
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Publisher{
		outbox:       outbox,
		conn:         conn,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Run polls until ctx is cancelled.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.tick(ctx); err != nil {
				p.log.Error("outbox tick failed", "err", err)
			}
		}
	}
}

func (p *Publisher) tick(ctx context.Context) error {
	batch, err := p.outbox.ClaimBatch(ctx, p.batchSize)
	if err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	for _, e := range batch {
		if err := p.publishOne(ctx, ch, e); err != nil {
			observ.OutboxPublishErrors.Inc()
			p.log.Error("publish failed", "outbox_id", e.ID, "routing_key", e.RoutingKey, "err", err)
			continue
		}
		if err := p.outbox.MarkPublished(ctx, e.ID); err != nil {
			p.log.Error("mark published failed", "outbox_id", e.ID, "err", err)
			continue
		}
		observ.OutboxPublished.Inc()
	}
	return nil
}

func (p *Publisher) publishOne(ctx context.Context, ch *amqp.Channel, e *entity.OutboxEntry) error {
	var props usecase.MessageProperties
	if len(e.Properties) > 0 {
		if err := json.Unmarshal(e.Properties, &props); err != nil {
			p.log.Warn("outbox row has malformed properties", "outbox_id", e.ID, "err", err)
		}
	}
	return ch.PublishWithContext(ctx,
		e.Exchange,
		e.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    props.MessageID,
			Timestamp:    e.CreatedAt,
			Body:         e.Payload,
			Headers: amqp.Table{
				"sourceService": props.Headers.SourceService,
				"sentAt":        props.Headers.SentAt,
			},
		},
	)
}
