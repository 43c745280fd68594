package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"menunggu ke diproses", StatusMenungguPembayaran, StatusDiproses, true},
		{"menunggu ke dibatalkan", StatusMenungguPembayaran, StatusDibatalkan, true},
		{"menunggu ke dikirim dilarang", StatusMenungguPembayaran, StatusDikirim, false},
		{"diproses ke dikirim", StatusDiproses, StatusDikirim, true},
		{"diproses ke dibatalkan", StatusDiproses, StatusDibatalkan, true},
		{"diproses ke selesai dilarang", StatusDiproses, StatusSelesai, false},
		{"dikirim ke selesai", StatusDikirim, StatusSelesai, true},
		{"dikirim ke dikembalikan", StatusDikirim, StatusDikembalikan, true},
		{"dikirim ke dibatalkan dilarang", StatusDikirim, StatusDibatalkan, false},
		{"selesai terminal", StatusSelesai, StatusDikirim, false},
		{"dibatalkan terminal", StatusDibatalkan, StatusDiproses, false},
		{"dikembalikan terminal", StatusDikembalikan, StatusSelesai, false},
		{"status asing", Status("ngawur"), StatusDiproses, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Transition(tt.from, tt.to)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrBadTransition)
			}
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusValid(t *testing.T) {
	for _, s := range []Status{
		StatusMenungguPembayaran, StatusDiproses, StatusDikirim,
		StatusSelesai, StatusDibatalkan, StatusDikembalikan,
	} {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("paid").Valid())
	assert.False(t, Status("").Valid())
}

func TestPaymentStatusTerminal(t *testing.T) {
	assert.False(t, PaymentPending.Terminal())
	assert.True(t, PaymentSuccess.Terminal())
	assert.True(t, PaymentFailed.Terminal())
	assert.True(t, PaymentExpired.Terminal())
}

func TestMethodValid(t *testing.T) {
	for _, m := range []Method{MethodCash, MethodCard, MethodQris, MethodTransfer, MethodEwallet} {
		assert.True(t, m.Valid(), string(m))
	}
	assert.False(t, Method("pulsa").Valid())
	assert.False(t, Method("").Valid())
}
