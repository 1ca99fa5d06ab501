package entity

import "time"

// Transaction is a bank-reported transfer. Rows are immutable once inserted;
// transaction_ref is unique in storage.
type Transaction struct {
	ID             int64     `json:"id"`
	TransactionRef string    `json:"transaction_ref"`
	AmountCents    int64     `json:"amount_cents"`
	DateTime       time.Time `json:"date_time"`
	Sender         string    `json:"sender"`
	Receiver       string    `json:"receiver"`
	CreatedAt      time.Time `json:"created_at"`
}
