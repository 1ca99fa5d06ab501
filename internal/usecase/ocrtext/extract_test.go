package ocrtext

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(t *testing.T) *time.Location {
	t.Helper()
	l, err := time.LoadLocation("Asia/Singapore")
	require.NoError(t, err)
	return l
}

func TestExtractDBS(t *testing.T) {
	text := `DBS PayLah!
Transfer Successful
SGD 11.80
To: CAMPUS CHOW
Transaction Ref: 20260902DBSSG1234
02 Sep 2026 11:30:00 AM`

	got := Extract("dbs", text, loc(t))
	assert.Equal(t, "20260902DBSSG1234", got.Ref)
	assert.Equal(t, int64(1180), got.AmountCents)
	assert.Equal(t, time.Date(2026, 9, 2, 11, 30, 0, 0, loc(t)), got.At)
}

func TestExtractPOSBReferenceNo(t *testing.T) {
	text := `POSB digibank
Reference no. ABC9988
S$ 4.50
02 Sep 2026 09:05 AM`

	got := Extract("posb", text, loc(t))
	assert.Equal(t, "ABC9988", got.Ref)
	assert.Equal(t, int64(450), got.AmountCents)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 5, 0, 0, loc(t)), got.At)
}

func TestExtractStandardChartered(t *testing.T) {
	text := `Standard Chartered
Transfer Reference: SC555XYZ
SGD 1,234.56
2026-09-02 18:45:10`

	got := Extract("sc", text, loc(t))
	assert.Equal(t, "SC555XYZ", got.Ref)
	assert.Equal(t, int64(123456), got.AmountCents)
	assert.Equal(t, time.Date(2026, 9, 2, 18, 45, 10, 0, loc(t)), got.At)
}

func TestExtractUnknownBankFallsBackToChowRef(t *testing.T) {
	text := `Some Bank
Paid SGD 11.80 with comment CHOW42
02 Sep 2026 12:00 PM`

	got := Extract("grabpay", text, loc(t))
	assert.Equal(t, "CHOW42", got.Ref)
	assert.Equal(t, int64(1180), got.AmountCents)
}

func TestExtractMissingFields(t *testing.T) {
	got := Extract("dbs", "completely unreadable blur", loc(t))
	assert.Empty(t, got.Ref)
	assert.Zero(t, got.AmountCents)
	assert.True(t, got.At.IsZero())
}

func TestExtractAmountVariants(t *testing.T) {
	cases := []struct {
		text string
		want int64
	}{
		{"SGD 11.80", 1180},
		{"S$ 4.50", 450},
		{"$0.99", 99},
		{"SGD 1,234.56", 123456},
		{"no amount here", 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractAmountCents(tc.text), tc.text)
	}
}
