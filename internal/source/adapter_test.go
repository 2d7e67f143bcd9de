package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const testCookiesJSON = `[{"name":"auth_token","value":"tok","domain":".twitter.com"},{"name":"ct0","value":"csrf","domain":".twitter.com"}]`

func newTestAdapter(t *testing.T, hosts []string) *Adapter {
	t.Helper()
	a, err := NewAdapter(testCookiesJSON, "", zerolog.Nop(),
		WithHosts(hosts),
		WithHTTPClient(http.DefaultClient),
		WithRateLimiter(rate.NewLimiter(rate.Inf, 1)),
	)
	require.NoError(t, err)
	return a
}

func TestClassifyRateLimitByErrorCode(t *testing.T) {
	assert.Equal(t, outcomeRateLimit, classify(200, []apiErrorEntry{{Code: 88}}))
}

func TestClassifyRateLimitByStatus(t *testing.T) {
	assert.Equal(t, outcomeRateLimit, classify(http.StatusTooManyRequests, nil))
}

func TestClassifyAuthByErrorCode(t *testing.T) {
	assert.Equal(t, outcomeAuth, classify(200, []apiErrorEntry{{Code: 32}}))
}

func TestClassifyAuthByStatus(t *testing.T) {
	assert.Equal(t, outcomeAuth, classify(http.StatusUnauthorized, nil))
}

func TestClassifySuccess(t *testing.T) {
	assert.Equal(t, outcomeSuccess, classify(200, nil))
}

func TestClassifyGenericOnUnrecognizedFailure(t *testing.T) {
	assert.Equal(t, outcomeGeneric, classify(500, nil))
}

func TestNewAdapterRejectsCookiesWithNoAuthPairs(t *testing.T) {
	_, err := NewAdapter(`[{"name":"auth_token","value":""},{"name":"ct0","value":""}]`, "", zerolog.Nop())
	assert.Error(t, err)
}

func TestRequestWithFailoverFallsBackToSecondHostOnFirstHostFailure(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer good.Close()

	a := newTestAdapter(t, []string{bad.URL, good.URL})

	_, err := a.requestWithFailover(context.Background(), "/graphql/user-by-screen-name", nil)
	require.NoError(t, err)
}

func TestRequestWithFailoverReturnsRateLimitErrorWhenAllHostsThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	a := newTestAdapter(t, []string{srv.URL, srv.URL})

	_, err := a.requestWithFailover(context.Background(), "/graphql/user-by-screen-name", nil)
	var rateLimitErr *RateLimitError
	require.True(t, errors.As(err, &rateLimitErr))
	assert.Len(t, rateLimitErr.Hosts, 2)
}

func TestRequestWithFailoverReturnsAuthErrorWhenCredentialsExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := newTestAdapter(t, []string{srv.URL, srv.URL})

	_, err := a.requestWithFailover(context.Background(), "/graphql/user-by-screen-name", nil)
	var authErr *AuthError
	assert.True(t, errors.As(err, &authErr))
}

func TestHealthCheckFailsWhenSessionCheckFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := newTestAdapter(t, []string{srv.URL, srv.URL})
	err := a.HealthCheck(context.Background(), "someone")
	assert.Error(t, err)
}
