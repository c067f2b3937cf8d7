package checkout

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"ravepay/internal/logger"
	"ravepay/internal/rave"
	"ravepay/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const metaFieldPrefix = "meta_"

// Enqueuer takes transactions that need an asynchronous recheck.
type Enqueuer interface {
	Enqueue(txRef string)
}

type Handler struct {
	client      *rave.Client
	renderer    *Renderer
	orders      OrderBook
	reconciler  Enqueuer
	prefix      string
	redirectURL string
}

func NewHandler(client *rave.Client, orders OrderBook, reconciler Enqueuer, prefix, redirectURL string) *Handler {
	return &Handler{
		client:      client,
		renderer:    NewRenderer(client.InlineScriptURL()),
		orders:      orders,
		reconciler:  reconciler,
		prefix:      prefix,
		redirectURL: redirectURL,
	}
}

// VerifyResponse is the JSON body returned by the callback and requery routes.
type VerifyResponse struct {
	TxRef          string `json:"txref"`
	Status         string `json:"status"`
	Verified       bool   `json:"verified"`
	Attempts       int    `json:"attempts,omitempty"`
	FlwRef         string `json:"flwref,omitempty"`
	Amount         string `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
	ChargeResponse string `json:"charge_response,omitempty"`
}

// Pay signs the posted form and renders the hand-off page.
func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromCtx(ctx)

	if err := r.ParseForm(); err != nil {
		utils.WriteJSONError(w, "invalid form", http.StatusBadRequest)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(r.FormValue("amount")))
	if err != nil {
		utils.WriteJSONError(w, "invalid amount", http.StatusBadRequest)
		return
	}

	prefix := r.FormValue("ref")
	if prefix == "" {
		prefix = h.prefix
	}
	session := h.client.NewSession(prefix, utils.FormBool(r.FormValue("override")))
	session.SetRedirectURL(h.redirectURL)
	for _, meta := range metaFromForm(r) {
		session.AddMeta(meta)
	}

	req := rave.PaymentRequest{
		Amount:        amount,
		Currency:      strings.ToUpper(strings.TrimSpace(r.FormValue("currency"))),
		Email:         r.FormValue("email"),
		FirstName:     r.FormValue("firstname"),
		LastName:      r.FormValue("lastname"),
		Phone:         r.FormValue("phonenumber"),
		PaymentMethod: r.FormValue("payment_method"),
		Description:   r.FormValue("description"),
		PayButtonText: r.FormValue("pay_button_text"),
	}

	ctx = logger.WithTxRef(ctx, session.ReferenceNumber())
	handoff, err := session.Initialize(ctx, req)
	if err != nil {
		utils.WriteJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	order := Order{TxRef: session.ReferenceNumber(), Amount: amount, Currency: req.Currency}
	if err := h.orders.Record(ctx, order); err != nil {
		log.Error("Failed to record order", zap.Error(err))
		utils.WriteJSONError(w, "failed to record order", http.StatusInternalServerError)
		return
	}

	var page bytes.Buffer
	if err := h.renderer.Render(&page, handoff); err != nil {
		log.Error("Failed to render checkout page", zap.Error(err))
		utils.WriteJSONError(w, "failed to render checkout", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(page.Bytes())
}

// metaFromForm turns every meta_<name> form value into a
// {"metaname": name, "metavalue": value} entry, ordered by name.
func metaFromForm(r *http.Request) []map[string]string {
	names := make([]string, 0)
	for key := range r.Form {
		if strings.HasPrefix(key, metaFieldPrefix) && len(key) > len(metaFieldPrefix) {
			names = append(names, key)
		}
	}
	sort.Strings(names)

	var out []map[string]string
	for _, key := range names {
		for _, v := range r.Form[key] {
			out = append(out, map[string]string{
				"metaname":  strings.TrimPrefix(key, metaFieldPrefix),
				"metavalue": v,
			})
		}
	}
	return out
}

// Callback verifies the transaction the gateway redirected back with.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	txRef := r.URL.Query().Get("txref")
	flwRef := r.URL.Query().Get("flwref")
	if txRef == "" {
		utils.WriteJSONError(w, "txref is required", http.StatusBadRequest)
		return
	}

	ctx := logger.WithTxRef(r.Context(), txRef)
	log := logger.FromCtx(ctx)

	order, err := h.orders.Lookup(ctx, txRef)
	if errors.Is(err, ErrOrderNotFound) {
		utils.WriteJSONError(w, "unknown transaction", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("Failed to load order", zap.Error(err))
		utils.WriteJSONError(w, "failed to load order", http.StatusInternalServerError)
		return
	}

	session := h.client.NewSession(txRef, true)
	res, err := session.VerifyTransfer(ctx, flwRef, order.Amount, order.Currency)
	if err != nil {
		h.writeGatewayFailure(ctx, w, err)
		return
	}

	if res.Status == rave.VerifyUnresolved && h.reconciler != nil {
		h.reconciler.Enqueue(txRef)
	}

	utils.WriteJSON(w, verifyStatusCode(res.Status), toVerifyResponse(txRef, res))
}

// Requery reports the gateway status of a reference without verifying it.
func (h *Handler) Requery(w http.ResponseWriter, r *http.Request) {
	txRef := chi.URLParam(r, "txref")
	ctx := logger.WithTxRef(r.Context(), txRef)

	session := h.client.NewSession(txRef, true)
	res, err := session.Requery(ctx, txRef)
	if err != nil {
		h.writeGatewayFailure(ctx, w, err)
		return
	}

	body := VerifyResponse{
		TxRef:    txRef,
		Status:   res.Status.String(),
		Attempts: res.Attempts,
	}
	if res.Data != nil {
		body.FlwRef = res.Data.FlwRef
		body.Amount = res.Data.Amount.String()
		body.Currency = res.Data.Currency
	}

	code := http.StatusOK
	switch res.Status {
	case rave.RequeryGaveUp:
		code = http.StatusAccepted
		if h.reconciler != nil {
			h.reconciler.Enqueue(txRef)
		}
	case rave.RequeryGatewayError:
		code = http.StatusBadGateway
	}
	utils.WriteJSON(w, code, body)
}

func (h *Handler) writeGatewayFailure(ctx context.Context, w http.ResponseWriter, err error) {
	log := logger.FromCtx(ctx)

	if errors.Is(err, context.DeadlineExceeded) {
		log.Warn("Gateway sequence timed out", zap.Error(err))
		utils.WriteJSONError(w, "payment gateway timed out", http.StatusGatewayTimeout)
		return
	}

	log.Error("Gateway call failed", zap.Error(err))
	utils.WriteJSONError(w, "payment gateway error", http.StatusBadGateway)
}

func verifyStatusCode(s rave.VerifyStatus) int {
	switch s {
	case rave.VerifyVerified:
		return http.StatusOK
	case rave.VerifyDeclined:
		return http.StatusPaymentRequired
	case rave.VerifyMismatch:
		return http.StatusConflict
	default:
		return http.StatusAccepted
	}
}

func toVerifyResponse(txRef string, res *rave.VerifyResult) VerifyResponse {
	body := VerifyResponse{
		TxRef:    txRef,
		Status:   res.Status.String(),
		Verified: res.Verified(),
	}
	if res.Requery != nil {
		body.Attempts = res.Requery.Attempts
	}
	if res.Data != nil {
		body.FlwRef = res.Data.FlwRef
		body.Amount = res.Data.Amount.String()
		body.Currency = res.Data.Currency
		body.ChargeResponse = res.Data.FlwMeta.ChargeResponse
	}
	return body
}
