package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/tanibudaya/order-service/internal/checkout"
	"github.com/tanibudaya/order-service/internal/gateway"
	"github.com/tanibudaya/order-service/internal/orders"
	"github.com/tanibudaya/order-service/internal/payments"
	"github.com/tanibudaya/order-service/internal/redisx"
)

type OrdersHandler struct {
	Repo     *orders.Repo
	Checkout *checkout.Service
	Payments *payments.Service
	Redis    *redis.Client
	// ClientKey dipakai frontend buat inisialisasi Snap.js.
	ClientKey string
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Get("/orders/{id}/payment", h.getPayment)
	r.Post("/payments/notify", h.paymentNotify)
	r.Get("/payments/config", h.paymentConfig)
	r.Get("/products", h.listProducts)
}

func (h *OrdersHandler) paymentConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"client_key": h.ClientKey})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// statusFor memetakan sentinel error domain ke kode HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orders.ErrOrderNotFound),
		errors.Is(err, orders.ErrPaymentNotFound),
		errors.Is(err, orders.ErrProductNotFound):
		return http.StatusNotFound
	case errors.Is(err, orders.ErrBadTransition),
		errors.Is(err, orders.ErrNotCancellable),
		errors.Is(err, orders.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, orders.ErrEmptyItems),
		errors.Is(err, orders.ErrInvalidMethod),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, orders.ErrCourierRequired),
		errors.Is(err, orders.ErrProductInactive):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// cacheStatus menyimpan status terbaru agar GET /orders/{id}/status murah.
// Gagal cache bukan masalah, DB tetap jadi kebenaran.
func (h *OrdersHandler) cacheStatus(ctx context.Context, orderID string, st orders.Status) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	_ = h.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, st), redisx.TTLStatusCache).Err()
}

type CreateOrderReq struct {
	BuyerID     string             `json:"buyer_id"`
	BuyerName   string             `json:"buyer_name"`
	BuyerEmail  string             `json:"buyer_email"`
	BuyerPhone  string             `json:"buyer_phone"`
	SellerID    string             `json:"seller_id"`
	Items       []orders.ItemInput `json:"items"`
	ShippingFee int64              `json:"shipping_fee"`
	AdminFee    int64              `json:"admin_fee"`
	Discount    int64              `json:"discount"`
	AddressID   string             `json:"address_id"`
	Courier     string             `json:"courier"`
	Note        string             `json:"note"`
	Method      orders.Method      `json:"method"`
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json tidak valid"})
		return
	}
	if req.BuyerID == "" || req.SellerID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "buyer_id dan seller_id wajib diisi"})
		return
	}

	// Timeout longgar karena jalur non-cash memanggil gateway.
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.CreateOrder(ctx, checkout.CreateOrderInput{
		Buyer: gateway.Buyer{
			ID:    req.BuyerID,
			Name:  req.BuyerName,
			Email: req.BuyerEmail,
			Phone: req.BuyerPhone,
		},
		SellerID:    req.SellerID,
		Items:       req.Items,
		ShippingFee: req.ShippingFee,
		AdminFee:    req.AdminFee,
		Discount:    req.Discount,
		AddressID:   req.AddressID,
		Courier:     req.Courier,
		Note:        req.Note,
		Method:      req.Method,
	})
	if err != nil {
		writeErr(w, err)
		return
	}

	h.cacheStatus(ctx, res.Order.ID, res.Order.Status)
	writeJSON(w, http.StatusCreated, res)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	var (
		list []orders.Order
		err  error
	)
	switch {
	case r.URL.Query().Get("buyer_id") != "":
		list, err = h.Repo.ListByBuyer(ctx, r.URL.Query().Get("buyer_id"))
	case r.URL.Query().Get("seller_id") != "":
		list, err = h.Repo.ListBySeller(ctx, r.URL.Query().Get("seller_id"))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "butuh buyer_id atau seller_id"})
		return
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Repo.GetOrder(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	// 1) coba cache
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	// 2) fallback DB
	st, err := h.Repo.GetOrderStatus(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, orderID, st)
	writeJSON(w, http.StatusOK, map[string]orders.Status{"status": st})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelReq
	_ = json.NewDecoder(r.Body).Decode(&req) // body opsional

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.Cancel(ctx, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

type updateStatusReq struct {
	Status         orders.Status `json:"status"`
	Courier        string        `json:"courier"`
	TrackingNumber string        `json:"tracking_number"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "json tidak valid"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Checkout.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status, req.Courier, req.TrackingNumber)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o.ID, o.Status)
	writeJSON(w, http.StatusOK, o)
}

// getPayment: cek status pembayaran on-demand; untuk non-cash bakal
// rekonsiliasi ke gateway dulu, jadi respons selalu status terkini.
func (h *OrdersHandler) getPayment(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	p, err := h.Payments.CheckPaymentStatus(ctx, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}

	st, err := h.Repo.GetOrderStatus(ctx, orderID)
	if err == nil {
		h.cacheStatus(ctx, orderID, st)
	}
	writeJSON(w, http.StatusOK, p)
}

type notifyReq struct {
	OrderID           string `json:"order_id"`
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
}

// paymentNotify: webhook dari gateway. Payload cuma dipakai buat nunjuk
// pesanan mana; status aslinya selalu di-query ulang ke gateway.
func (h *OrdersHandler) paymentNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "notifikasi tidak valid"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	// Gateway suka kirim ulang notifikasi yang sama; dedup di Redis biar
	// nggak bolak-balik rekonsiliasi. Tanda dedup baru ditulis setelah
	// rekonsiliasi sukses: kalau gagal, kiriman ulang dari gateway masih
	// diproses lagi, bukan ikut ke-skip.
	var dedupKey string
	if req.TransactionID != "" {
		dedupKey = fmt.Sprintf(redisx.KeyDedup, "webhook", req.TransactionID+":"+req.TransactionStatus)
		if n, _ := h.Redis.Exists(ctx, dedupKey).Result(); n > 0 {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
			return
		}
	}

	if err := h.Payments.HandleNotification(ctx, req.OrderID); err != nil {
		writeErr(w, err)
		return
	}
	if dedupKey != "" {
		h.Redis.Set(ctx, dedupKey, 1, redisx.TTLDedup)
	}

	if o, err := h.Repo.OrderByKode(ctx, req.OrderID); err == nil {
		h.cacheStatus(ctx, o.ID, o.Status)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *OrdersHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Repo.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": ps})
}
