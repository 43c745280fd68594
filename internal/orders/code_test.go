package orders

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewOrderCode(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	code := NewOrderCode(now)
	assert.Regexp(t, regexp.MustCompile(`^TB-20250314092653-\d{4}$`), code)
}

func TestNewPaymentRef(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	ref := NewPaymentRef(now)
	assert.Regexp(t, regexp.MustCompile(`^CASH-20250314092653-\d{4}$`), ref)
}

func TestCheckoutExpiry(t *testing.T) {
	// qris/ewallet kadaluarsa cepat, sisanya 24 jam
	assert.Equal(t, 15*time.Minute, CheckoutExpiry(MethodQris))
	assert.Equal(t, 15*time.Minute, CheckoutExpiry(MethodEwallet))
	assert.Equal(t, 24*time.Hour, CheckoutExpiry(MethodTransfer))
	assert.Equal(t, 24*time.Hour, CheckoutExpiry(MethodCard))
}
