package orders

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// NewOrderCode: timestamp + suffix acak. Tidak dijamin unik secara
// kriptografis; pembuat pesanan retry kalau kena unique index (lihat service).
func NewOrderCode(now time.Time) string {
	return fmt.Sprintf("TB-%s-%04d", now.Format("20060102150405"), rand.IntN(10000))
}

// NewPaymentRef: nomor referensi untuk pembayaran cash (tanpa gateway).
func NewPaymentRef(now time.Time) string {
	return fmt.Sprintf("CASH-%s-%04d", now.Format("20060102150405"), rand.IntN(10000))
}
