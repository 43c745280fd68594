package orders

import "fmt"

// Status pesanan, string persis seperti yang dipakai di wire/DB.
type Status string

const (
	StatusMenungguPembayaran Status = "menunggu_pembayaran"
	StatusDiproses           Status = "diproses"
	StatusDikirim            Status = "dikirim"
	StatusSelesai            Status = "selesai"
	StatusDibatalkan         Status = "dibatalkan"
	StatusDikembalikan       Status = "dikembalikan"
)

var validNext = map[Status]map[Status]bool{
	StatusMenungguPembayaran: {StatusDiproses: true, StatusDibatalkan: true},
	StatusDiproses:           {StatusDikirim: true, StatusDibatalkan: true},
	StatusDikirim:            {StatusSelesai: true, StatusDikembalikan: true},
	StatusSelesai:            {},
	StatusDibatalkan:         {},
	StatusDikembalikan:       {},
}

func (s Status) Valid() bool {
	_, ok := validNext[s]
	return ok
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

// Transition memvalidasi perpindahan status; error menyebut status asal & tujuan.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}
	return nil
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
	PaymentExpired PaymentStatus = "expired"
)

// Terminal: success/failed/expired tidak boleh berubah lagi.
func (p PaymentStatus) Terminal() bool {
	return p == PaymentSuccess || p == PaymentFailed || p == PaymentExpired
}

type Method string

const (
	MethodCash     Method = "cash"
	MethodCard     Method = "card"
	MethodQris     Method = "qris"
	MethodTransfer Method = "transfer"
	MethodEwallet  Method = "ewallet"
)

func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodQris, MethodTransfer, MethodEwallet:
		return true
	}
	return false
}
