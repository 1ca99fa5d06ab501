package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/matthew-ngzc/campus-chow/internal/adapter/observ"
	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

// Recorder consumes the service's queue and lands every delivery in the inbox
// before acking. The ack only ever follows a durable insert (or a dedup hit),
// so a crash mid-record redelivers rather than loses.
type Recorder struct {
	inbox     usecase.InboxRepo
	conn      *Conn
	queueName string
	prefetch  int
	log       *slog.Logger
}

func NewRecorder(inbox usecase.InboxRepo, conn *Conn, queueName string, prefetch int, log *slog.Logger) *Recorder {
	if prefetch <= 0 {
		prefetch = 50
	}
	return &Recorder{
		inbox:     inbox,
		conn:      conn,
		queueName: queueName,
		prefetch:  prefetch,
		log:       log,
	}
}

// Start begins consuming; non-blocking.
func (r *Recorder) Start(ctx context.Context) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	if err := ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}
	msgs, err := ch.Consume(
		r.queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				r.handle(ctx, d)
			}
		}
	}()
	return nil
}

func (r *Recorder) handle(ctx context.Context, d amqp.Delivery) {
	messageID := d.MessageId
	if messageID == "" {
		// Without a dedup key the message can never be recorded exactly
		// once; drop it rather than loop it through the queue forever.
		r.log.Warn("dropping message without id", "routing_key", d.RoutingKey)
		observ.InboxRecorded.WithLabelValues("dropped").Inc()
		_ = d.Ack(false)
		return
	}

	props, err := json.Marshal(usecase.MessageProperties{
		MessageID: messageID,
		Headers: usecase.MessageHeaders{
			SourceService: headerString(d.Headers, "sourceService"),
			SentAt:        headerString(d.Headers, "sentAt"),
		},
	})
	if err != nil {
		r.log.Error("marshal properties failed", "message_id", messageID, "err", err)
		_ = d.Nack(false, true)
		return
	}

	inserted, err := r.inbox.Record(ctx, &entity.InboxEntry{
		MessageID:  messageID,
		RoutingKey: d.RoutingKey,
		Payload:    d.Body,
		Properties: props,
	})
	if err != nil {
		observ.InboxRecorded.WithLabelValues("error").Inc()
		r.log.Error("inbox record failed", "message_id", messageID, "err", err)
		_ = d.Nack(false, true) // requeue, retry later
		return
	}
	if inserted {
		observ.InboxRecorded.WithLabelValues("inserted").Inc()
	} else {
		observ.InboxRecorded.WithLabelValues("duplicate").Inc()
	}
	_ = d.Ack(false)
}

func headerString(t amqp.Table, key string) string {
	if t == nil {
		return ""
	}
	s, _ := t[key].(string)
	return s
}
