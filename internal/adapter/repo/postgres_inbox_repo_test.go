package repo

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
	"github.com/matthew-ngzc/campus-chow/internal/usecase"
)

func TestInboxRecordInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("INSERT INTO inbox").
		WithArgs("m-1", "order.command.status_update", []byte(`{}`), []byte(`{}`), entity.InboxReceived).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(int64(3), time.Now()))

	r := NewPostgresInboxRepo(db)
	inserted, err := r.Record(context.Background(), &entity.InboxEntry{
		MessageID:  "m-1",
		RoutingKey: "order.command.status_update",
		Payload:    []byte(`{}`),
		Properties: []byte(`{}`),
	})
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInboxRecordDuplicateIsNoop(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// ON CONFLICT DO NOTHING returns no row for a duplicate.
	mock.ExpectQuery("INSERT INTO inbox").
		WithArgs("m-1", "order.command.status_update", []byte(`{}`), []byte(`{}`), entity.InboxReceived).
		WillReturnError(sql.ErrNoRows)

	r := NewPostgresInboxRepo(db)
	inserted, err := r.Record(context.Background(), &entity.InboxEntry{
		MessageID:  "m-1",
		RoutingKey: "order.command.status_update",
		Payload:    []byte(`{}`),
		Properties: []byte(`{}`),
	})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestTranslateErr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, translateErr(nil))
	assert.ErrorIs(t, translateErr(sql.ErrNoRows), usecase.ErrNotFound)
	assert.ErrorIs(t, translateErr(&pq.Error{Code: "23505"}), usecase.ErrAlreadyExists)
	assert.NotErrorIs(t, translateErr(&pq.Error{Code: "40001"}), usecase.ErrAlreadyExists)
}
