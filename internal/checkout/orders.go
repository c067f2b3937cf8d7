package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

var ErrOrderNotFound = errors.New("order not found")

// Order is what the merchant expects the gateway to charge for a reference.
type Order struct {
	TxRef    string
	Amount   decimal.Decimal
	Currency string
}

// OrderBook stores and looks up expected charges by reference number.
type OrderBook interface {
	Record(ctx context.Context, o Order) error
	Lookup(ctx context.Context, txRef string) (*Order, error)
}

type memoryOrders struct {
	c *cache.Cache
}

// NewMemoryOrders keeps orders in process for ttl. Real deployments plug in
// their own order storage.
func NewMemoryOrders(ttl time.Duration) OrderBook {
	return &memoryOrders{c: cache.New(ttl, ttl)}
}

func (m *memoryOrders) Record(_ context.Context, o Order) error {
	m.c.SetDefault(o.TxRef, o)
	return nil
}

func (m *memoryOrders) Lookup(_ context.Context, txRef string) (*Order, error) {
	v, ok := m.c.Get(txRef)
	if !ok {
		return nil, ErrOrderNotFound
	}
	o := v.(Order)
	return &o, nil
}
