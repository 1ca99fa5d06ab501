package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCronExprBefore(t *testing.T) {
	t.Parallel()

	lunch := entity.DeliverySlots["12:00"]
	assert.Equal(t, "30 10 * * *", cronExprBefore(lunch, 90*time.Minute))
	assert.Equal(t, "0 11 * * *", cronExprBefore(lunch, 60*time.Minute))

	breakfast := entity.DeliverySlots["08:15"]
	assert.Equal(t, "45 6 * * *", cronExprBefore(breakfast, 90*time.Minute))
	assert.Equal(t, "15 7 * * *", cronExprBefore(breakfast, 60*time.Minute))
}

func TestCronExprBeforeWrapsMidnight(t *testing.T) {
	t.Parallel()

	breakfast := entity.DeliverySlots["08:15"]
	// 8:15 minus 9 hours lands on the previous day at 23:15.
	assert.Equal(t, "15 23 * * *", cronExprBefore(breakfast, 9*time.Hour))
	assert.Equal(t, "45 23 * * *", cronExprBefore(breakfast, 8*time.Hour+30*time.Minute))
	// An offset equal to the slot time lands exactly on midnight.
	assert.Equal(t, "0 0 * * *", cronExprBefore(breakfast, 8*time.Hour+15*time.Minute))
}

func TestSlotTime(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	date := time.Date(2026, 9, 2, 0, 0, 0, 0, loc)
	at := SlotTime(entity.DeliverySlots["15:30"], date, loc)
	assert.Equal(t, time.Date(2026, 9, 2, 15, 30, 0, 0, loc), at)
}

func TestDateForFiringCrossesMidnight(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	// Reminder fires 23:15 the day before an 08:15 slot with a 9h offset.
	now := time.Date(2026, 9, 1, 23, 15, 0, 0, loc)
	date := dateForFiring(now, 9*time.Hour)
	at := SlotTime(entity.DeliverySlots["08:15"], date, loc)
	assert.Equal(t, time.Date(2026, 9, 2, 8, 15, 0, 0, loc), at)
}

type recordingSweeper struct {
	reminders []time.Time
	cancels   []time.Time
}

func (r *recordingSweeper) RunPaymentReminder(ctx context.Context, slotAt time.Time) (int, error) {
	r.reminders = append(r.reminders, slotAt)
	return 0, nil
}

func (r *recordingSweeper) RunAutoCancel(ctx context.Context, slotAt time.Time) (int, error) {
	r.cancels = append(r.cancels, slotAt)
	return 0, nil
}

func TestNewRejectsInvertedOffsets(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)

	_, err = New(&recordingSweeper{}, loc, 30*time.Minute, 60*time.Minute, discardLogger())
	assert.Error(t, err)

	s, err := New(&recordingSweeper{}, loc, 90*time.Minute, 60*time.Minute, discardLogger())
	require.NoError(t, err)
	<-s.Stop().Done()
}
