// Package scheduler fires the payment-reminder and auto-cancel sweeps at
// fixed offsets before each delivery slot, in the campus timezone.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// Sweeper is the orders core; slotAt is the slot's delivery instant on the
// date the job fires.
type Sweeper interface {
	RunPaymentReminder(ctx context.Context, slotAt time.Time) (int, error)
	RunAutoCancel(ctx context.Context, slotAt time.Time) (int, error)
}

type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	loc      *time.Location
	reminder time.Duration
	cancel   time.Duration
	log      *slog.Logger
}

// New wires one reminder job and one auto-cancel job per delivery slot.
// reminderBefore must exceed cancelBefore so customers are warned before they
// are cancelled.
func New(sweeper Sweeper, loc *time.Location, reminderBefore, cancelBefore time.Duration, log *slog.Logger) (*Scheduler, error) {
	if reminderBefore <= cancelBefore {
		return nil, fmt.Errorf("reminder offset %s must exceed auto-cancel offset %s", reminderBefore, cancelBefore)
	}
	s := &Scheduler{
		cron:     cron.New(cron.WithLocation(loc)),
		sweeper:  sweeper,
		loc:      loc,
		reminder: reminderBefore,
		cancel:   cancelBefore,
		log:      log,
	}
	for _, slot := range entity.DeliverySlots {
		slot := slot
		if _, err := s.cron.AddFunc(cronExprBefore(slot, reminderBefore), func() {
			s.fireReminder(slot)
		}); err != nil {
			return nil, err
		}
		if _, err := s.cron.AddFunc(cronExprBefore(slot, cancelBefore), func() {
			s.fireAutoCancel(slot)
		}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

func (s *Scheduler) Stop() context.Context { return s.cron.Stop() }

func (s *Scheduler) fireReminder(slot entity.DeliverySlot) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	slotAt := SlotTime(slot, dateForFiring(time.Now().In(s.loc), s.reminder), s.loc)
	n, err := s.sweeper.RunPaymentReminder(ctx, slotAt)
	if err != nil {
		s.log.Error("reminder sweep failed", "slot", slot.Label, "err", err)
		return
	}
	s.log.Info("reminder sweep done", "slot", slot.Label, "orders", n)
}

func (s *Scheduler) fireAutoCancel(slot entity.DeliverySlot) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	slotAt := SlotTime(slot, dateForFiring(time.Now().In(s.loc), s.cancel), s.loc)
	n, err := s.sweeper.RunAutoCancel(ctx, slotAt)
	if err != nil {
		s.log.Error("auto-cancel sweep failed", "slot", slot.Label, "err", err)
		return
	}
	s.log.Info("auto-cancel sweep done", "slot", slot.Label, "orders", n)
}

// SlotTime is the delivery instant of slot on the given civil date.
func SlotTime(slot entity.DeliverySlot, date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), slot.Hour, slot.Minute, 0, 0, loc)
}

// dateForFiring resolves which civil date a firing targets: a job firing
// before midnight for an early-morning slot targets tomorrow.
func dateForFiring(now time.Time, before time.Duration) time.Time {
	target := now.Add(before)
	return target
}

// cronExprBefore renders "slot minus offset" as a five-field cron expression,
// wrapping across midnight when the offset reaches into the previous day.
func cronExprBefore(slot entity.DeliverySlot, before time.Duration) string {
	total := slot.Hour*60 + slot.Minute - int(before.Minutes())
	const day = 24 * 60
	total = ((total % day) + day) % day
	return fmt.Sprintf("%d %d * * *", total%60, total/60)
}
