package rave

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Payload keys understood by the inline checkout.
const (
	KeyPublicKey     = "PBFPubKey"
	KeyAmount        = "amount"
	KeyEmail         = "customer_email"
	KeyFirstName     = "customer_firstname"
	KeyLastName      = "customer_lastname"
	KeyPhone         = "customer_phone"
	KeyTxRef         = "txref"
	KeyPaymentMethod = "payment_method"
	KeyCountry       = "country"
	KeyCurrency      = "currency"
	KeyDescription   = "custom_description"
	KeyLogo          = "custom_logo"
	KeyTitle         = "custom_title"
	KeyPayButtonText = "pay_button_text"
	KeyRedirectURL   = "redirect_url"
	KeyHostedPayment = "hosted_payment"
)

// Fields is the unordered set of payload values keyed by payload key.
type Fields map[string]string

// Field is a single key/value pair of a canonical payload.
type Field struct {
	Key   string
	Value string
}

// Country derives the checkout country from the currency.
func Country(currency string) string {
	switch currency {
	case "KES":
		return "KE"
	case "GHS":
		return "GH"
	default:
		return "NG"
	}
}

// isEmpty reports whether the checkout treats v as absent. "0" counts as
// absent, matching how the hosted checkout filters its own payload.
func isEmpty(v string) bool {
	return v == "" || v == "0"
}

// Canonical drops empty values and returns the rest sorted by key, byte-wise.
func Canonical(fields Fields) []Field {
	out := make([]Field, 0, len(fields))
	for k, v := range fields {
		if isEmpty(v) {
			continue
		}
		out = append(out, Field{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Checksum is the hex SHA-256 of the canonical values concatenated in key
// order followed by the secret key.
func Checksum(fields Fields, secretKey string) string {
	return checksumOf(Canonical(fields), secretKey)
}

func checksumOf(canonical []Field, secretKey string) string {
	var b strings.Builder
	for _, f := range canonical {
		b.WriteString(f.Value)
	}
	b.WriteString(secretKey)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
