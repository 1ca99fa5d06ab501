package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

// MatchWindow bounds how far apart a bank transaction timestamp and a
// screenshot timestamp may sit and still reconcile.
const MatchWindow = time.Minute

// findMatchingTransaction looks for the bank transaction behind a screenshot.
// Candidates are restricted to equal amount inside ±MatchWindow; the window
// is enforced even for an exact reference match so a stale transaction with a
// recycled reference can never verify a fresh payment.
func (u *Payments) findMatchingTransaction(ctx context.Context, ref string, amountCents int64, at time.Time) (*entity.Transaction, error) {
	if at.IsZero() || amountCents < 1 {
		return nil, nil
	}
	cands, err := u.txs.CandidatesNear(ctx, amountCents, at, MatchWindow)
	if err != nil {
		return nil, err
	}
	return pickTransaction(cands, ref, at), nil
}

// findMatchingPayment looks for the pending payment a bank transaction pays
// for, using the screenshot-extracted fields stored on the payment row.
func (u *Payments) findMatchingPayment(ctx context.Context, ref string, amountCents int64, at time.Time) (*entity.Payment, error) {
	cands, err := u.payments.CandidatesNear(ctx, amountCents, at, MatchWindow)
	if err != nil {
		return nil, err
	}
	return pickPayment(cands, ref, at), nil
}

// pickTransaction ranks candidates: exact reference, then substring
// containment in either direction, then any candidate. Ties break to the
// closest timestamp, then the lowest id, so replays always pick the same row.
func pickTransaction(cands []*entity.Transaction, ref string, at time.Time) *entity.Transaction {
	var best *entity.Transaction
	bestRank := 0
	for _, c := range cands {
		rank := refRank(c.TransactionRef, ref)
		if best == nil || rank > bestRank ||
			(rank == bestRank && closer(c.DateTime, best.DateTime, at, c.ID, best.ID)) {
			best, bestRank = c, rank
		}
	}
	return best
}

func pickPayment(cands []*entity.Payment, ref string, at time.Time) *entity.Payment {
	var best *entity.Payment
	bestRank := 0
	for _, c := range cands {
		rank := refRank(c.TransactionRef, ref)
		if r := refRank(c.Reference, ref); r > rank {
			rank = r
		}
		var cAt time.Time
		if c.TransactionTime != nil {
			cAt = *c.TransactionTime
		}
		var bAt time.Time
		if best != nil && best.TransactionTime != nil {
			bAt = *best.TransactionTime
		}
		if best == nil || rank > bestRank ||
			(rank == bestRank && closer(cAt, bAt, at, c.ID, best.ID)) {
			best, bestRank = c, rank
		}
	}
	return best
}

// refRank scores how strongly two references agree: 3 exact, 2 one contains
// the other, 1 no evidence either way. References compare case-insensitively
// with surrounding whitespace ignored.
func refRank(stored, probe string) int {
	a := strings.ToUpper(strings.TrimSpace(stored))
	b := strings.ToUpper(strings.TrimSpace(probe))
	switch {
	case a == "" || b == "":
		return 1
	case a == b:
		return 3
	case strings.Contains(a, b) || strings.Contains(b, a):
		return 2
	default:
		return 1
	}
}

func closer(a, b, at time.Time, aID, bID int64) bool {
	da, db := absDur(a.Sub(at)), absDur(b.Sub(at))
	if da != db {
		return da < db
	}
	return aID < bID
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
