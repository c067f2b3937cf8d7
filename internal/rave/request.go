package rave

import (
	"bytes"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// PaymentRequest carries the per-checkout values supplied by the customer
// facing form. Empty optional fields are left out of the payload.
type PaymentRequest struct {
	Amount        decimal.Decimal
	Currency      string
	Email         string
	FirstName     string
	LastName      string
	Phone         string
	PaymentMethod string
	Description   string
	PayButtonText string
}

func (r PaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if r.Currency == "" {
		return ErrMissingCurrency
	}
	return nil
}

// Handoff is the signed payload passed to the inline checkout script.
type Handoff struct {
	Fields        []Field
	IntegrityHash string
	Meta          []map[string]string
}

// TxRef returns the reference number carried by the payload.
func (h *Handoff) TxRef() string {
	return h.Get(KeyTxRef)
}

// Get returns the value of a payload field, or "" when it was filtered out.
func (h *Handoff) Get(key string) string {
	for _, f := range h.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return ""
}

// MarshalJSON writes the canonical fields in key order, then integrity_hash
// and meta.
func (h *Handoff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for _, f := range h.Fields {
		if err := writeMember(&buf, f.Key, fieldValue(f)); err != nil {
			return nil, err
		}
		buf.WriteByte(',')
	}

	if err := writeMember(&buf, "integrity_hash", h.IntegrityHash); err != nil {
		return nil, err
	}
	buf.WriteByte(',')

	meta := h.Meta
	if meta == nil {
		meta = []map[string]string{}
	}
	if err := writeMember(&buf, "meta", meta); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// hosted_payment goes out as a number, everything else as the string that was hashed.
func fieldValue(f Field) any {
	if f.Key == KeyHostedPayment {
		return json.Number(f.Value)
	}
	return f.Value
}

func writeMember(buf *bytes.Buffer, key string, value any) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}
