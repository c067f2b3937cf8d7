package rave

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"ravepay/internal/logger"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	requeryPath = "/flwv3-pug/getpaidx/api/xrequery"
	verifyPath  = "/flwv3-pug/getpaidx/api/verify"
	// InlineScriptPath is the checkout script loaded by the hand-off page.
	InlineScriptPath = "/flwv3-pug/getpaidx/api/flwpbf-inline.js"

	statusSuccess    = "success"
	statusSuccessful = "successful"
	statusFailed     = "failed"

	DefaultRequeryDelay       = 3 * time.Second
	DefaultMaxRequeryAttempts = 5
	defaultHTTPTimeout        = 15 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Options struct {
	PublicKey   string
	SecretKey   string
	Environment Environment
	// BaseURL overrides the URL derived from Environment.
	BaseURL string
	Logo    string
	Title   string

	// RequeryDelay is the constant wait between undecided requery attempts.
	RequeryDelay       time.Duration
	MaxRequeryAttempts int
	// Timeout bounds a whole requery or verify sequence. Zero means no bound
	// beyond the caller's context.
	Timeout time.Duration

	HTTPClient *http.Client
	// Limiter paces outbound gateway calls. Nil uses a default limiter.
	Limiter *rate.Limiter
	Events  EventHandler
	Sleep   SleepFunc
}

// Client talks to the gateway. It is safe for concurrent use; per-checkout
// state lives in Session.
type Client struct {
	opts       Options
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	events     EventHandler
	sleep      SleepFunc
}

func NewClient(opts Options) (*Client, error) {
	if opts.PublicKey == "" {
		return nil, ErrMissingPublicKey
	}
	if opts.SecretKey == "" {
		return nil, ErrMissingSecretKey
	}

	if opts.RequeryDelay < 0 {
		opts.RequeryDelay = 0
	}
	if opts.MaxRequeryAttempts <= 0 {
		opts.MaxRequeryAttempts = DefaultMaxRequeryAttempts
	}

	c := &Client{
		opts:       opts,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
		events:     opts.Events,
		sleep:      opts.Sleep,
	}
	if c.baseURL == "" {
		c.baseURL = opts.Environment.BaseURL()
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 10)
	}
	if c.events == nil {
		c.events = NopHandler{}
	}
	if c.sleep == nil {
		c.sleep = sleepCtx
	}
	return c, nil
}

// BaseURL is the gateway URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// InlineScriptURL is the checkout script for the selected environment.
func (c *Client) InlineScriptURL() string {
	return c.baseURL + InlineScriptPath
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// post sends body as JSON and returns the raw response.
func (c *Client) post(ctx context.Context, path string, body any) (int, []byte, error) {
	log := logger.FromCtx(ctx).With(zap.String("path", path))

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal rave request: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("rave rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		log.Error("Failed creating request", zap.Error(err))
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Error("Rave request failed", zap.Error(err))
		return 0, nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("Failed to read response body", zap.Error(err))
		return resp.StatusCode, nil, fmt.Errorf("failed to read rave response: %w", err)
	}

	return resp.StatusCode, bodyBytes, nil
}

// Requery polls the gateway for txRef until it reports a final state, the
// gateway rejects the call, or the attempt bound is reached.
func (c *Client) Requery(ctx context.Context, txRef string) (*RequeryResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	return c.requery(ctx, txRef)
}

func (c *Client) requery(ctx context.Context, txRef string) (*RequeryResult, error) {
	if txRef == "" {
		return nil, ErrMissingReference
	}
	ctx = logger.WithTxRef(ctx, txRef)
	c.events.OnRequery(ctx, txRef)

	res := &RequeryResult{TxRef: txRef}
	for {
		res.Attempts++
		c.events.OnRequeryAttempt(ctx, txRef, res.Attempts)

		env, raw, err := c.requeryOnce(ctx, txRef)
		if err != nil {
			return nil, fmt.Errorf("requery %s: %w", txRef, err)
		}

		if env.Status != statusSuccess {
			res.Status = RequeryGatewayError
			res.RawError = raw
			res.Data = nil
			break
		}

		data, err := decodeTransactionData(env.Data)
		if err != nil {
			return nil, fmt.Errorf("requery %s: %w", txRef, err)
		}
		res.Data = data

		if data.Status == statusSuccessful {
			res.Status = RequerySuccessful
			break
		}
		if data.Status == statusFailed {
			res.Status = RequeryFailed
			break
		}

		if res.Attempts >= c.opts.MaxRequeryAttempts {
			res.Status = RequeryGaveUp
			break
		}
		if err := c.sleep(ctx, c.opts.RequeryDelay); err != nil {
			return nil, fmt.Errorf("requery %s after %d attempts: %w", txRef, res.Attempts, err)
		}
	}

	c.events.OnRequeryResult(ctx, res)
	return res, nil
}

func (c *Client) requeryOnce(ctx context.Context, txRef string) (*envelope, json.RawMessage, error) {
	body := map[string]string{
		"txref":        txRef,
		"SECKEY":       c.opts.SecretKey,
		"last_attempt": "1",
	}

	_, raw, err := c.post(ctx, requeryPath, body)
	if err != nil {
		return nil, nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		// An undecodable body is still a gateway answer, surface it raw.
		return &envelope{}, raw, nil
	}
	return &env, raw, nil
}

func decodeTransactionData(raw json.RawMessage) (*TransactionData, error) {
	var data TransactionData
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("decode requery data: %w", err)
		}
	}
	data.Raw = raw
	return &data, nil
}

// Verify asks the gateway for the charge details of flwRef.
func (c *Client) Verify(ctx context.Context, flwRef string) (*VerifyData, error) {
	if flwRef == "" {
		return nil, ErrMissingFlwRef
	}

	body := map[string]string{
		"SECKEY":    c.opts.SecretKey,
		"flw_ref":   flwRef,
		"normalize": "1",
	}

	code, raw, err := c.post(ctx, verifyPath, body)
	if err != nil {
		return nil, fmt.Errorf("verify %s: %w", flwRef, err)
	}
	if code < 200 || code >= 300 {
		return nil, &GatewayError{StatusCode: code, Body: raw}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode verify response: %w", err)
	}
	if env.Status != statusSuccess {
		return nil, &GatewayError{StatusCode: code, Body: raw}
	}

	var data VerifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("decode verify data: %w", err)
	}
	data.Raw = env.Data
	return &data, nil
}

// VerifyTransfer requeries txRef and, unless the requery gave up, verifies the
// charge and checks it against the amount and currency the merchant expects.
// An empty flwRef falls back to the gateway reference reported by the requery.
func (c *Client) VerifyTransfer(ctx context.Context, txRef, flwRef string, amount decimal.Decimal, currency string) (*VerifyResult, error) {
	start := time.Now()
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	rq, err := c.requery(ctx, txRef)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithTxRef(ctx, txRef)

	res := &VerifyResult{
		ExpectedAmount:   amount,
		ExpectedCurrency: currency,
		Requery:          rq,
	}

	if !rq.Resolved() {
		res.Status = VerifyUnresolved
		c.events.OnVerify(ctx, res, time.Since(start))
		return res, nil
	}

	if flwRef == "" && rq.Data != nil {
		flwRef = rq.Data.FlwRef
	}

	data, err := c.Verify(ctx, flwRef)
	if err != nil {
		return nil, err
	}

	res.Data = data
	res.Status = classify(data, amount, currency)
	c.events.OnVerify(ctx, res, time.Since(start))
	return res, nil
}
