package rave

import (
	"context"
	"maps"

	"github.com/shopspring/decimal"
)

// Session is one checkout attempt: it owns the reference number, the redirect
// URL and the meta entries sent with the payload. A Session is not safe for
// concurrent use.
type Session struct {
	client        *Client
	txRef         string
	redirectURL   string
	meta          []map[string]string
	integrityHash string
}

// NewSession starts a checkout attempt. With override the prefix is used as
// the reference number as is.
func (c *Client) NewSession(prefix string, override bool) *Session {
	return &Session{
		client: c,
		txRef:  NewReferenceNumber(prefix, override),
	}
}

func (s *Session) ReferenceNumber() string {
	return s.txRef
}

func (s *Session) SetRedirectURL(url string) *Session {
	s.redirectURL = url
	return s
}

func (s *Session) RedirectURL() string {
	return s.redirectURL
}

// AddMeta appends a meta entry. Entries are kept in call order and never merged.
func (s *Session) AddMeta(meta map[string]string) *Session {
	s.meta = append(s.meta, maps.Clone(meta))
	return s
}

func (s *Session) Meta() []map[string]string {
	return s.meta
}

// IntegrityHash returns the checksum of the last Initialize call.
func (s *Session) IntegrityHash() string {
	return s.integrityHash
}

func (s *Session) fields(req PaymentRequest) Fields {
	opts := s.client.opts
	return Fields{
		KeyPublicKey:     opts.PublicKey,
		KeyAmount:        formatAmount(req.Amount),
		KeyEmail:         req.Email,
		KeyFirstName:     req.FirstName,
		KeyTxRef:         s.txRef,
		KeyPaymentMethod: req.PaymentMethod,
		KeyLastName:      req.LastName,
		KeyCountry:       Country(req.Currency),
		KeyCurrency:      req.Currency,
		KeyDescription:   req.Description,
		KeyLogo:          opts.Logo,
		KeyTitle:         opts.Title,
		KeyPhone:         req.Phone,
		KeyPayButtonText: req.PayButtonText,
		KeyRedirectURL:   s.redirectURL,
		KeyHostedPayment: "1",
	}
}

// formatAmount keeps the scale the amount was given with, so "100.00" is
// signed and sent as "100.00" rather than "100".
func formatAmount(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// Initialize signs req and returns the hand-off payload for the inline checkout.
func (s *Session) Initialize(ctx context.Context, req PaymentRequest) (*Handoff, error) {
	if s.txRef == "" {
		return nil, ErrMissingReference
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	canonical := Canonical(s.fields(req))
	s.integrityHash = checksumOf(canonical, s.client.opts.SecretKey)

	h := &Handoff{
		Fields:        canonical,
		IntegrityHash: s.integrityHash,
		Meta:          append([]map[string]string(nil), s.meta...),
	}

	s.client.events.OnInit(ctx, h)
	return h, nil
}

// Requery polls the gateway for txRef and makes it the session reference.
func (s *Session) Requery(ctx context.Context, txRef string) (*RequeryResult, error) {
	s.txRef = txRef
	return s.client.Requery(ctx, txRef)
}

// AsyncRequery is the value delivered by RequeryAsync.
type AsyncRequery struct {
	Result *RequeryResult
	Err    error
}

// RequeryAsync runs Requery on its own goroutine. The channel receives exactly
// one value and is then closed.
func (s *Session) RequeryAsync(ctx context.Context, txRef string) <-chan AsyncRequery {
	s.txRef = txRef
	out := make(chan AsyncRequery, 1)
	go func() {
		defer close(out)
		res, err := s.client.Requery(ctx, txRef)
		out <- AsyncRequery{Result: res, Err: err}
	}()
	return out
}

// VerifyTransfer verifies the session's transaction. See Client.VerifyTransfer.
func (s *Session) VerifyTransfer(ctx context.Context, flwRef string, amount decimal.Decimal, currency string) (*VerifyResult, error) {
	return s.client.VerifyTransfer(ctx, s.txRef, flwRef, amount, currency)
}
