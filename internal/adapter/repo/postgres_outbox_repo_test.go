package repo

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

func TestOutboxEnqueueRequiresTx(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := NewPostgresOutboxRepo(db)
	err = r.Enqueue(context.Background(), nil, &entity.OutboxEntry{RoutingKey: "order.created"})
	assert.Error(t, err)
}

func TestOutboxEnqueueInsideTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO outbox").
		WithArgs("order.created", []byte(`{"a":1}`), []byte(`{"messageId":"m-1"}`), "chow.events").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(7), time.Now()))
	mock.ExpectCommit()

	tx, err := db.Begin()
	require.NoError(t, err)

	r := NewPostgresOutboxRepo(db)
	e := &entity.OutboxEntry{
		RoutingKey: "order.created",
		Payload:    []byte(`{"a":1}`),
		Properties: []byte(`{"messageId":"m-1"}`),
		Exchange:   "chow.events",
	}
	require.NoError(t, r.Enqueue(context.Background(), tx, e))
	require.NoError(t, tx.Commit())

	assert.Equal(t, int64(7), e.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxClaimBatchSkipLocked(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE SKIP LOCKED").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "routing_key", "payload", "properties", "exchange", "created_at"}).
			AddRow(int64(1), "order.created", []byte(`{}`), []byte(`{}`), "chow.events", time.Now()).
			AddRow(int64(2), "order.status.preparing", []byte(`{}`), []byte(`{}`), "chow.events", time.Now()))
	mock.ExpectCommit()

	r := NewPostgresOutboxRepo(db)
	batch, err := r.ClaimBatch(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "order.created", batch[0].RoutingKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutboxMarkPublished(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE outbox SET published_at").
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	r := NewPostgresOutboxRepo(db)
	require.NoError(t, r.MarkPublished(context.Background(), 5))

	// Already published: nothing to mark.
	err = r.MarkPublished(context.Background(), 5)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
