package queue

import (
	"context"
	"log/slog"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/adapter/observ"
	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

// InboxHandler processes one claimed inbox row.
type InboxHandler interface {
	HandleInbox(ctx context.Context, entry *entity.InboxEntry) error
}

// Dispatcher drains the inbox: claim received rows, run the handler, mark the
// outcome. Terminal business errors mark the row failed and it never runs
// again; transient errors leave the row in received so the next tick retries.
type Dispatcher struct {
	inbox        usecase.InboxRepo
	handler      InboxHandler
	batchSize    int
	pollInterval time.Duration
	log          *slog.Logger
}

func NewDispatcher(inbox usecase.InboxRepo, handler InboxHandler, batchSize int, pollInterval time.Duration, log *slog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = 50
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Dispatcher{
		inbox:        inbox,
		handler:      handler,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		log:          log,
	}
}

// maxErrorMessage caps what lands in the inbox error_message column.
const maxErrorMessage = 2000

func truncateErrMsg(msg string) string {
	if len(msg) > maxErrorMessage {
		return msg[:maxErrorMessage]
	}
	return msg
}

// Run polls until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := d.tick(ctx); err != nil {
				d.log.Error("inbox tick failed", "err", err)
			}
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) error {
	batch, err := d.inbox.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}
	for _, e := range batch {
		d.dispatchOne(ctx, e)
	}
	return nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, e *entity.InboxEntry) {
	err := d.handler.HandleInbox(ctx, e)
	switch {
	case err == nil:
		if err := d.inbox.MarkProcessed(ctx, e.MessageID); err != nil {
			d.log.Error("mark processed failed", "message_id", e.MessageID, "err", err)
			return
		}
		observ.InboxProcessed.WithLabelValues("processed").Inc()
	case usecase.IsTerminal(err):
		d.log.Warn("inbox row failed terminally",
			"message_id", e.MessageID, "routing_key", e.RoutingKey, "err", err)
		if err := d.inbox.MarkFailed(ctx, e.MessageID, truncateErrMsg(err.Error())); err != nil {
			d.log.Error("mark failed failed", "message_id", e.MessageID, "err", err)
			return
		}
		observ.InboxProcessed.WithLabelValues("failed").Inc()
	default:
		// Transient: row stays received and is reclaimed next tick.
		d.log.Warn("inbox row will retry",
			"message_id", e.MessageID, "routing_key", e.RoutingKey, "err", err)
		observ.InboxProcessed.WithLabelValues("retry").Inc()
	}
}
