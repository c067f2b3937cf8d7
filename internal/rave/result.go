package rave

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// RequeryStatus is the terminal state of a requery sequence.
type RequeryStatus int

const (
	RequerySuccessful RequeryStatus = iota + 1
	RequeryFailed
	// RequeryGaveUp means the gateway never reached a final state within the
	// attempt bound. The caller has to recheck later.
	RequeryGaveUp
	// RequeryGatewayError means the gateway rejected the call; no retry was made.
	RequeryGatewayError
)

func (s RequeryStatus) String() string {
	switch s {
	case RequerySuccessful:
		return "successful"
	case RequeryFailed:
		return "failed"
	case RequeryGaveUp:
		return "gave_up"
	case RequeryGatewayError:
		return "gateway_error"
	default:
		return "unknown"
	}
}

// TransactionData is the "data" object of a requery response.
type TransactionData struct {
	TxRef         string          `json:"txref"`
	FlwRef        string          `json:"flwref"`
	Amount        decimal.Decimal `json:"amount"`
	ChargedAmount decimal.Decimal `json:"chargedamount"`
	Currency      string          `json:"currency"`
	ChargeCode    string          `json:"chargecode"`
	ChargeMessage string          `json:"chargemessage"`
	PaymentType   string          `json:"paymenttype"`
	Status        string          `json:"status"`
	CustomerEmail string          `json:"custemail"`

	Raw json.RawMessage `json:"-"`
}

type RequeryResult struct {
	TxRef    string
	Status   RequeryStatus
	Attempts int
	// Data is the last transaction state seen; nil on RequeryGatewayError.
	Data *TransactionData
	// RawError is the gateway body of a RequeryGatewayError.
	RawError json.RawMessage
}

// Resolved reports whether the requery loop stopped on a gateway answer
// rather than giving up. A RequeryGatewayError is resolved but not Final.
func (r *RequeryResult) Resolved() bool {
	return r.Status != RequeryGaveUp
}

// Final reports whether the transaction itself reached a terminal state.
func (r *RequeryResult) Final() bool {
	return r.Status == RequerySuccessful || r.Status == RequeryFailed
}

// VerifyStatus is the outcome of VerifyTransfer.
type VerifyStatus int

const (
	// VerifyVerified: approved charge code, amount and currency match.
	VerifyVerified VerifyStatus = iota + 1
	// VerifyDeclined: amount and currency match but the charge was not approved.
	VerifyDeclined
	// VerifyMismatch: amount or currency differ from what the merchant expected,
	// whatever the charge code says.
	VerifyMismatch
	// VerifyUnresolved: the requery gave up before a final state was seen.
	VerifyUnresolved
)

func (s VerifyStatus) String() string {
	switch s {
	case VerifyVerified:
		return "verified"
	case VerifyDeclined:
		return "declined"
	case VerifyMismatch:
		return "mismatch"
	case VerifyUnresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// ChargeMeta is the flwMeta object of a verify response.
type ChargeMeta struct {
	ChargeResponse        string `json:"chargeResponse"`
	ChargeResponseMessage string `json:"chargeResponseMessage"`
}

// VerifyData is the "data" object of a verify response.
type VerifyData struct {
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"transaction_currency"`
	Status   string          `json:"status"`
	FlwMeta  ChargeMeta      `json:"flwMeta"`

	Raw json.RawMessage `json:"-"`
}

type VerifyResult struct {
	Status           VerifyStatus
	ExpectedAmount   decimal.Decimal
	ExpectedCurrency string
	Requery          *RequeryResult
	// Data is nil only for VerifyUnresolved.
	Data *VerifyData
}

// Verified is the boolean view of the result.
func (r *VerifyResult) Verified() bool {
	return r.Status == VerifyVerified
}

var approvedChargeCodes = map[string]bool{"00": true, "0": true}

// classify decides the verify outcome. Amount and currency are checked first
// so a tampered or mixed-up transaction never reads as a plain decline.
func classify(data *VerifyData, amount decimal.Decimal, currency string) VerifyStatus {
	if !data.Amount.Equal(amount) || data.Currency != currency {
		return VerifyMismatch
	}
	if approvedChargeCodes[data.FlwMeta.ChargeResponse] {
		return VerifyVerified
	}
	return VerifyDeclined
}
