package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"ravepay/internal/rave"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	refs []string
}

func (f *fakeEnqueuer) Enqueue(txRef string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs = append(f.refs, txRef)
}

type gateway struct {
	requeryStatus string
	verifyStatus  int
	verifyAmount  string
	verifyCode    string
}

func (g gateway) roundTrip(req *http.Request) *http.Response {
	if strings.HasSuffix(req.URL.Path, "/xrequery") {
		return jsonResponse(http.StatusOK, `{"status":"success","data":{"txref":"ORDER-1","flwref":"FLW-MOCK-1","amount":100,"currency":"NGN","status":"`+g.requeryStatus+`"}}`)
	}
	status := g.verifyStatus
	if status == 0 {
		status = http.StatusOK
	}
	return jsonResponse(status, `{"status":"success","data":{"tx_ref":"ORDER-1","flw_ref":"FLW-MOCK-1","amount":`+g.verifyAmount+
		`,"transaction_currency":"NGN","flwMeta":{"chargeResponse":"`+g.verifyCode+`"}}}`)
}

func newTestHandler(t *testing.T, gw gateway) (*Handler, OrderBook, *fakeEnqueuer) {
	t.Helper()
	client, err := rave.NewClient(rave.Options{
		PublicKey:   "FLWPUBK-test",
		SecretKey:   "FLWSECK-test",
		Environment: rave.Staging,
		HTTPClient:  &http.Client{Transport: MockRoundTripper(gw.roundTrip)},
		Limiter:     rate.NewLimiter(rate.Inf, 0),
		Sleep:       func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
	})
	require.NoError(t, err)

	orders := NewMemoryOrders(time.Hour)
	enq := &fakeEnqueuer{}
	return NewHandler(client, orders, enq, "shop", "https://shop.example/callback"), orders, enq
}

func postForm(h http.HandlerFunc, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func decodeVerify(t *testing.T, w *httptest.ResponseRecorder) VerifyResponse {
	t.Helper()
	var body VerifyResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHandler_Pay(t *testing.T) {
	t.Run("Renders the signed hand-off page", func(t *testing.T) {
		h, orders, _ := newTestHandler(t, gateway{})

		w := postForm(h.Pay, url.Values{
			"amount":    {"100.00"},
			"currency":  {"ngn"},
			"email":     {"ada@example.com"},
			"firstname": {"Ada"},
			"ref":       {"ORDER-1"},
			"override":  {"1"},
			"meta_pnr":  {"XK12"},
		})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

		page := w.Body.String()
		assert.Contains(t, page, "https://rave-api-v2.herokuapp.com/flwv3-pug/getpaidx/api/flwpbf-inline.js")
		assert.Contains(t, page, "getpaidSetup(data)")
		assert.Contains(t, page, `"txref":"ORDER-1"`)
		assert.Contains(t, page, `"currency":"NGN"`)
		assert.Contains(t, page, `"amount":"100.00"`)
		assert.Contains(t, page, `"integrity_hash":"`)
		assert.Contains(t, page, `"metaname":"pnr"`)

		order, err := orders.Lookup(context.Background(), "ORDER-1")
		require.NoError(t, err)
		assert.True(t, order.Amount.Equal(decimal.NewFromInt(100)))
		assert.Equal(t, "NGN", order.Currency)
	})

	t.Run("Generates a reference from the default prefix", func(t *testing.T) {
		h, _, _ := newTestHandler(t, gateway{})

		w := postForm(h.Pay, url.Values{"amount": {"250"}, "currency": {"KES"}})

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"txref":"shop_`)
		assert.Contains(t, w.Body.String(), `"country":"KE"`)
	})

	t.Run("Invalid amount", func(t *testing.T) {
		h, _, _ := newTestHandler(t, gateway{})

		w := postForm(h.Pay, url.Values{"amount": {"abc"}, "currency": {"NGN"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = postForm(h.Pay, url.Values{"amount": {"0"}, "currency": {"NGN"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Missing currency", func(t *testing.T) {
		h, _, _ := newTestHandler(t, gateway{})

		w := postForm(h.Pay, url.Values{"amount": {"10"}})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestMetaFromForm(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/pay", strings.NewReader("meta_b=2&meta_a=1&meta_a=1&meta_=x&other=y"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	require.NoError(t, req.ParseForm())

	assert.Equal(t, []map[string]string{
		{"metaname": "a", "metavalue": "1"},
		{"metaname": "a", "metavalue": "1"},
		{"metaname": "b", "metavalue": "2"},
	}, metaFromForm(req))
}

func TestHandler_Callback(t *testing.T) {
	record := func(t *testing.T, orders OrderBook) {
		require.NoError(t, orders.Record(context.Background(), Order{
			TxRef:    "ORDER-1",
			Amount:   decimal.RequireFromString("100.00"),
			Currency: "NGN",
		}))
	}

	call := func(h *Handler, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/callback?"+query, nil)
		w := httptest.NewRecorder()
		h.Callback(w, req)
		return w
	}

	cases := []struct {
		name     string
		gw       gateway
		code     int
		status   string
		verified bool
		enqueued bool
	}{
		{"Verified", gateway{requeryStatus: "successful", verifyAmount: "100", verifyCode: "00"}, http.StatusOK, "verified", true, false},
		{"Declined", gateway{requeryStatus: "successful", verifyAmount: "100", verifyCode: "09"}, http.StatusPaymentRequired, "declined", false, false},
		{"Mismatch", gateway{requeryStatus: "successful", verifyAmount: "50", verifyCode: "00"}, http.StatusConflict, "mismatch", false, false},
		{"Unresolved", gateway{requeryStatus: "pending"}, http.StatusAccepted, "unresolved", false, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, orders, enq := newTestHandler(t, tc.gw)
			record(t, orders)

			w := call(h, "txref=ORDER-1&flwref=FLW-MOCK-1")

			assert.Equal(t, tc.code, w.Code)
			body := decodeVerify(t, w)
			assert.Equal(t, "ORDER-1", body.TxRef)
			assert.Equal(t, tc.status, body.Status)
			assert.Equal(t, tc.verified, body.Verified)
			if tc.enqueued {
				assert.Equal(t, []string{"ORDER-1"}, enq.refs)
				assert.Equal(t, 5, body.Attempts)
			} else {
				assert.Empty(t, enq.refs)
			}
		})
	}

	t.Run("Missing txref", func(t *testing.T) {
		h, _, _ := newTestHandler(t, gateway{})
		assert.Equal(t, http.StatusBadRequest, call(h, "").Code)
	})

	t.Run("Unknown order", func(t *testing.T) {
		h, _, _ := newTestHandler(t, gateway{})
		assert.Equal(t, http.StatusNotFound, call(h, "txref=ORDER-404").Code)
	})

	t.Run("Gateway failure", func(t *testing.T) {
		h, orders, _ := newTestHandler(t, gateway{requeryStatus: "successful", verifyStatus: http.StatusInternalServerError})
		record(t, orders)

		w := call(h, "txref=ORDER-1&flwref=FLW-MOCK-1")
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestRouter(t *testing.T) {
	h, _, enq := newTestHandler(t, gateway{requeryStatus: "pending"})
	router := NewRouter(h)

	t.Run("Requery reports gave up", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/requery/ORDER-9", nil)
		req.Header.Set("X-Device-ID", "router-test-requery")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusAccepted, w.Code)
		body := decodeVerify(t, w)
		assert.Equal(t, "gave_up", body.Status)
		assert.Equal(t, 5, body.Attempts)
		assert.Equal(t, []string{"ORDER-9"}, enq.refs)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	})

	t.Run("Metrics", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("Pay only accepts POST", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/pay", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	})
}

func TestRenderer(t *testing.T) {
	r := NewRenderer("https://api.ravepay.co/flwv3-pug/getpaidx/api/flwpbf-inline.js")
	h := &rave.Handoff{
		Fields:        []rave.Field{{Key: rave.KeyDescription, Value: "</script><script>alert(1)</script>"}},
		IntegrityHash: "abc",
	}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, h))

	out := buf.String()
	assert.Contains(t, out, `src="https://api.ravepay.co/flwv3-pug/getpaidx/api/flwpbf-inline.js"`)
	assert.Equal(t, 2, strings.Count(out, "</script>"))
	assert.Contains(t, out, `"integrity_hash":"abc"`)
}
