package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ravepay/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		PublicKey:         "FLWPUBK-test",
		SecretKey:         "FLWSECK-test",
		Environment:       "staging",
		Prefix:            "shop",
		RequeryDelay:      time.Millisecond,
		RequeryAttempts:   5,
		VerifyTimeout:     time.Second,
		ReconcileInterval: time.Minute,
		AppPort:           "8080",
		AppEnv:            "test",
	}
}

func TestNewServer(t *testing.T) {
	s, err := newServer(testConfig())
	require.NoError(t, err)
	require.NotNil(t, s.handler)
	require.NotNil(t, s.reconciler)

	t.Run("Metrics", func(t *testing.T) {
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Callback requires txref", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/callback", nil)
		req.Header.Set("X-Device-ID", "main-test-callback")
		rr := httptest.NewRecorder()
		s.handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("Missing keys", func(t *testing.T) {
		cfg := testConfig()
		cfg.SecretKey = ""
		_, err := newServer(cfg)
		assert.Error(t, err)
	})
}

func TestRun(t *testing.T) {
	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()

	var addr string
	startServerFunc = func(srv *http.Server) error {
		addr = srv.Addr
		return http.ErrServerClosed
	}

	t.Setenv("RAVE_PUBLIC_KEY", "FLWPUBK-test")
	t.Setenv("RAVE_SECRET_KEY", "FLWSECK-test")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("APP_ENV", "test")

	assert.NoError(t, run(context.Background()))
	assert.Equal(t, ":9090", addr)
}

func TestRun_MissingKeys(t *testing.T) {
	t.Setenv("RAVE_PUBLIC_KEY", "")
	t.Setenv("RAVE_SECRET_KEY", "")

	assert.Error(t, run(context.Background()))
}

func TestServe_DrainsInFlightRequests(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()
	startServerFunc = func(srv *http.Server) error {
		return srv.Serve(ln)
	}

	started := make(chan struct{})
	var finished atomic.Bool
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			time.Sleep(200 * time.Millisecond)
			finished.Store(true)
			w.WriteHeader(http.StatusOK)
		}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	served := make(chan error, 1)
	go func() { served <- serve(ctx, srv, 5*time.Second) }()

	respCode := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/callback")
		if err != nil {
			respCode <- 0
			return
		}
		resp.Body.Close()
		respCode <- resp.StatusCode
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the handler")
	}
	cancel()

	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after shutdown")
	}

	assert.True(t, finished.Load(), "serve returned before the in-flight request finished")
	assert.Equal(t, http.StatusOK, <-respCode)
}

func TestServe_ReturnsListenError(t *testing.T) {
	origStartServer := startServerFunc
	defer func() { startServerFunc = origStartServer }()

	listenErr := errors.New("address already in use")
	startServerFunc = func(*http.Server) error { return listenErr }

	err := serve(context.Background(), &http.Server{}, time.Second)
	assert.ErrorIs(t, err, listenErr)
}
