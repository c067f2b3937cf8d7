package rave

import (
	"errors"
	"fmt"
)

var (
	ErrMissingPublicKey = errors.New("rave: public key is empty")
	ErrMissingSecretKey = errors.New("rave: secret key is empty")
	ErrMissingReference = errors.New("rave: transaction reference is empty")
	ErrInvalidAmount    = errors.New("rave: amount must be positive")
	ErrMissingCurrency  = errors.New("rave: currency is empty")
	ErrMissingFlwRef    = errors.New("rave: gateway reference is empty")
)

// GatewayError is returned when the gateway answers a verify call with a
// non-2xx status or a non-"success" envelope. Body holds the raw response.
type GatewayError struct {
	StatusCode int
	Body       []byte
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("rave error (http %d): %s", e.StatusCode, string(e.Body))
}
