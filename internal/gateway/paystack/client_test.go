package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, retries int) *Client {
	return NewClient(Config{BaseURL: url, SecretKey: "sk_test", Timeout: time.Second, MaxRetries: retries}, nil)
}

func TestClient_Initialize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "r@example.com", body["email"])
		assert.Equal(t, float64(100000), body["amount"])
		assert.Equal(t, "errand-1-1700000000000", body["reference"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created",
			"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"errand-1-1700000000000"}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL, 0).Initialize(context.Background(), InitializeRequest{
		Email:       "r@example.com",
		AmountMinor: 100000,
		Reference:   "errand-1-1700000000000",
		Metadata:    map[string]string{"errandId": "1"},
	})

	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
	assert.Equal(t, "errand-1-1700000000000", res.Reference)
}

func TestClient_Verify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ref-1", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"ref-1","status":"success","amount":5000,"currency":"NGN"}}`))
	}))
	defer srv.Close()

	tx, err := newTestClient(srv.URL, 0).Verify(context.Background(), "ref-1")

	require.NoError(t, err)
	assert.Equal(t, "success", tx.Status)
	assert.Equal(t, int64(5000), tx.Amount)
}

func TestClient_RejectedRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Initialize(context.Background(), InitializeRequest{Email: "a@b.c", AmountMinor: 100, Reference: "x"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	assert.Contains(t, err.Error(), "Duplicate Transaction Reference")
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"ref-2","status":"abandoned"}}`))
	}))
	defer srv.Close()

	tx, err := newTestClient(srv.URL, 2).Verify(context.Background(), "ref-2")

	require.NoError(t, err)
	assert.Equal(t, "abandoned", tx.Status)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_InitializeIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"reference":"x","authorization_url":"https://checkout.paystack.com/x"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 2).Initialize(context.Background(), InitializeRequest{Email: "a@b.c", AmountMinor: 100, Reference: "x"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_GivesUpAfterRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 1).Verify(context.Background(), "ref-3")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRejected))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_ContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := newTestClient(srv.URL, 0).Verify(ctx, "ref-4")
	assert.Error(t, err)
}
