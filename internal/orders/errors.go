package orders

import "errors"

var (
	ErrEmptyItems        = errors.New("pesanan harus punya minimal satu item")
	ErrInvalidMethod     = errors.New("metode pembayaran tidak dikenal")
	ErrProductNotFound   = errors.New("produk tidak ditemukan")
	ErrProductInactive   = errors.New("produk tidak aktif")
	ErrInsufficientStock = errors.New("stok tidak mencukupi")
	ErrOrderNotFound     = errors.New("pesanan tidak ditemukan")
	ErrPaymentNotFound   = errors.New("pembayaran tidak ditemukan")
	ErrBadTransition     = errors.New("transisi status tidak diizinkan")
	ErrInvalidStatus     = errors.New("status tidak dikenal")
	ErrNotCancellable    = errors.New("pesanan tidak bisa dibatalkan pada status ini")
	ErrCourierRequired   = errors.New("kurir dan nomor resi wajib diisi untuk status dikirim")
	ErrKodeConflict      = errors.New("kode pesanan sudah dipakai")
)
