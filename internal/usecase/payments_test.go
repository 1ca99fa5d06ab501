package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthew-ngzc/campus-chow/internal/entity"
)

func newTestPayments(t *testing.T) (*Payments, *fakePaymentRepo, *fakeTransactionRepo, *fakeOutbox) {
	t.Helper()
	payments := newFakePaymentRepo()
	txs := newFakeTransactionRepo()
	outbox := &fakeOutbox{}
	u := NewPayments(&fakeTxRunner{}, payments, txs, outbox, "chow.events", sgt(t), discardLogger())
	return u, payments, txs, outbox
}

func seedPayment(t *testing.T, u *Payments, orderID, amountCents int64) *entity.Payment {
	t.Helper()
	p, err := u.CreatePayment(context.Background(), orderID, amountCents, time.Now().Add(time.Hour))
	require.NoError(t, err)
	return p
}

func TestCreatePayment(t *testing.T) {
	u, _, _, _ := newTestPayments(t)

	p := seedPayment(t, u, 42, 1180)
	assert.Equal(t, entity.PaymentPending, p.Status)
	assert.Equal(t, "CHOW42", p.Reference)

	// One payment per order.
	_, err := u.CreatePayment(context.Background(), 42, 1180, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

const dbsReceipt = `DBS PayLah!
Transfer Successful
SGD 11.80
To: CAMPUS CHOW
Transaction Ref: CHOW42
02 Sep 2026 11:30:00 AM`

func TestUploadScreenshotNoTransactionYet(t *testing.T) {
	u, repo, _, outbox := newTestPayments(t)
	seedPayment(t, u, 42, 1180)

	p, err := u.UploadScreenshot(context.Background(), ScreenshotPayload{
		OrderID: 42, ImgURL: "https://img.example/1.png", Bank: "dbs", OCRText: dbsReceipt,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentPending, p.Status)
	assert.Equal(t, "CHOW42", p.TransactionRef)
	assert.Equal(t, int64(1180), p.TransactionAmt)
	require.NotNil(t, p.TransactionTime)
	assert.Equal(t, "https://img.example/1.png", p.ScreenshotURL)

	stored, err := repo.GetByOrderID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, stored.MatchedTxID)

	// Screenshot is acknowledged even without a match.
	assert.Equal(t, []string{KeyScreenshotProcessed}, outbox.routingKeys())
}

func TestUploadScreenshotMatchesExistingTransaction(t *testing.T) {
	u, repo, txs, outbox := newTestPayments(t)
	seedPayment(t, u, 42, 1180)

	loc := sgt(t)
	txs.txs["CHOW42"] = &entity.Transaction{
		ID: 9, TransactionRef: "CHOW42", AmountCents: 1180,
		DateTime: time.Date(2026, 9, 2, 11, 30, 20, 0, loc),
	}

	p, err := u.UploadScreenshot(context.Background(), ScreenshotPayload{
		OrderID: 42, ImgURL: "https://img.example/1.png", Bank: "dbs", OCRText: dbsReceipt,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentVerified, p.Status)
	require.NotNil(t, p.MatchedTxID)
	assert.Equal(t, int64(9), *p.MatchedTxID)

	assert.Equal(t, []string{KeyPaymentVerified, KeyScreenshotProcessed}, outbox.routingKeys())

	stored, err := repo.GetByOrderID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentVerified, stored.Status)
}

func TestUploadScreenshotAmountMismatch(t *testing.T) {
	u, repo, _, outbox := newTestPayments(t)
	seedPayment(t, u, 42, 9999) // expected amount differs from the receipt

	p, err := u.UploadScreenshot(context.Background(), ScreenshotPayload{
		OrderID: 42, ImgURL: "https://img.example/1.png", Bank: "dbs", OCRText: dbsReceipt,
	})
	require.NoError(t, err)

	// Only the screenshot URL lands; extracted fields are not trusted.
	assert.Equal(t, entity.PaymentPending, p.Status)
	assert.Empty(t, p.TransactionRef)
	assert.Zero(t, p.TransactionAmt)
	assert.Equal(t, "https://img.example/1.png", p.ScreenshotURL)

	stored, err := repo.GetByOrderID(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, stored.MatchedTxID)

	assert.Equal(t, []string{KeyScreenshotProcessed}, outbox.routingKeys())
}

func TestAddTransactionMatchesPendingPayment(t *testing.T) {
	u, repo, _, outbox := newTestPayments(t)
	seedPayment(t, u, 42, 1180)

	// Screenshot arrived first and stored its extracted fields.
	_, err := u.UploadScreenshot(context.Background(), ScreenshotPayload{
		OrderID: 42, ImgURL: "https://img.example/1.png", Bank: "dbs", OCRText: dbsReceipt,
	})
	require.NoError(t, err)
	outbox.entries = nil

	loc := sgt(t)
	tx, err := u.AddTransaction(context.Background(), TransactionPayload{
		TransactionRef: "CHOW42",
		AmountCents:    1180,
		DateTime:       time.Date(2026, 9, 2, 11, 30, 30, 0, loc).Format(time.RFC3339),
		Sender:         "JO TAN",
		Receiver:       "CAMPUS CHOW",
	})
	require.NoError(t, err)
	assert.NotZero(t, tx.ID)

	stored, err := repo.GetByOrderID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentVerified, stored.Status)
	require.NotNil(t, stored.MatchedTxID)
	assert.Equal(t, tx.ID, *stored.MatchedTxID)

	assert.Equal(t, []string{KeyPaymentVerified}, outbox.routingKeys())
}

func TestAddTransactionOutsideWindowNoMatch(t *testing.T) {
	u, repo, _, _ := newTestPayments(t)
	seedPayment(t, u, 42, 1180)

	_, err := u.UploadScreenshot(context.Background(), ScreenshotPayload{
		OrderID: 42, ImgURL: "https://img.example/1.png", Bank: "dbs", OCRText: dbsReceipt,
	})
	require.NoError(t, err)

	// Identical amount and reference, but 5 minutes away.
	loc := sgt(t)
	_, err = u.AddTransaction(context.Background(), TransactionPayload{
		TransactionRef: "CHOW42",
		AmountCents:    1180,
		DateTime:       time.Date(2026, 9, 2, 11, 35, 0, 0, loc).Format(time.RFC3339),
		Sender:         "JO TAN",
		Receiver:       "CAMPUS CHOW",
	})
	require.NoError(t, err)

	stored, err := repo.GetByOrderID(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, entity.PaymentPending, stored.Status)
	assert.Nil(t, stored.MatchedTxID)
}

func TestAddTransactionDuplicateRef(t *testing.T) {
	u, _, _, _ := newTestPayments(t)

	payload := TransactionPayload{
		TransactionRef: "BANK1",
		AmountCents:    500,
		DateTime:       time.Now().Format(time.RFC3339),
		Sender:         "A",
		Receiver:       "B",
	}
	_, err := u.AddTransaction(context.Background(), payload)
	require.NoError(t, err)

	_, err = u.AddTransaction(context.Background(), payload)
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestAddTransactionValidation(t *testing.T) {
	u, _, _, _ := newTestPayments(t)

	_, err := u.AddTransaction(context.Background(), TransactionPayload{
		TransactionRef: "BANK1", AmountCents: 0,
		DateTime: time.Now().Format(time.RFC3339), Sender: "A", Receiver: "B",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = u.AddTransaction(context.Background(), TransactionPayload{
		TransactionRef: "BANK1", AmountCents: 100,
		DateTime: "yesterday", Sender: "A", Receiver: "B",
	})
	assert.ErrorIs(t, err, ErrValidation)
}
