// Package source implements the Source Platform Adapter (spec.md §4.2):
// authenticated, paged retrieval of media-bearing posts with host failover,
// credential rotation, and rate-limit classification.
//
// Grounded on the teacher's internal/flow/client.go, which rotates across a
// list of RPC hosts, tracks per-node health, and classifies failures into
// typed errors (NodeUnavailableError/NodeExhaustedError/SporkRootNotFoundError)
// to drive a retry/repin loop — the same shape spec.md §4.2 asks for, here
// retargeted from Flow's gRPC access nodes to an HTTP GraphQL-style API and
// from per-node spork floors to per-host rate-limit/auth classification.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	desktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
	pageSize         = 20
)

// defaultBearers are the built-in fallback bearer-token candidates, used
// only when SOURCE_WEB_BEARER_TOKEN is unset (spec.md §9, Open Question:
// "bearer-token candidates include a built-in fallback ... treat as
// configuration"). These are the same class of long-lived, widely-known
// public web-client tokens ops teams treat as close to static configuration
// rather than a secret.
var defaultBearers = []string{
	"AAAAAAAAAAAAAAAAAAAAANRILgAAAAAAnNwIzUejRCOuH5E6I8xnZz4puTs%3D1Zv7ttfk8LF81IUq16cHjhLTvJu4FA33AGWWjCpTnA",
}

var defaultHosts = []string{
	"https://api.x.com",
	"https://api.twitter.com",
}

type apiErrorEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type graphqlEnvelope struct {
	Errors []apiErrorEntry `json:"errors"`
	Data   json.RawMessage `json:"data"`
}

// Adapter is the Source Platform Adapter. Credential rotation state
// (authIdx, bearerIdx) and host preference live on the instance, per
// spec.md §9 ("encapsulated per-adapter mutable state, not global"): the
// rotation indices advance only on auth failure, and the preferred host is
// updated whenever a host succeeds.
type Adapter struct {
	httpClient *http.Client
	logger     zerolog.Logger
	limiter    *rate.Limiter

	hosts []string

	mu            sync.Mutex
	bundle        CookieBundle
	authPairs     []authPair
	bearers       []string
	authIdx       int
	bearerIdx     int
	preferredHost int
}

// Option customizes Adapter construction; used by tests to inject a fake
// HTTP transport or host list.
type Option func(*Adapter)

// WithHTTPClient overrides the HTTP client (tests use this to point at an
// httptest.Server).
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) { a.httpClient = c }
}

// WithHosts overrides the two-host endpoint list.
func WithHosts(hosts []string) Option {
	return func(a *Adapter) { a.hosts = hosts }
}

// WithRateLimiter overrides the outbound request rate limiter.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(a *Adapter) { a.limiter = l }
}

// NewAdapter constructs an Adapter from a raw SOURCE_COOKIES_JSON payload and
// an optional bearer-token override (SOURCE_WEB_BEARER_TOKEN).
func NewAdapter(cookiesJSON, bearerOverride string, logger zerolog.Logger, opts ...Option) (*Adapter, error) {
	bundle, err := ParseCookieBundle(cookiesJSON)
	if err != nil {
		return nil, fmt.Errorf("construct source adapter: %w", err)
	}

	bearers := defaultBearers
	if bearerOverride != "" {
		bearers = []string{bearerOverride}
	}

	a := &Adapter{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.With().Str("component", "source").Logger(),
		limiter:    rate.NewLimiter(rate.Limit(2), 4),
		hosts:      defaultHosts,
		bundle:     bundle,
		authPairs:  extractAuthPairs(bundle),
		bearers:    bearers,
	}
	for _, opt := range opts {
		opt(a)
	}
	if len(a.authPairs) == 0 {
		return nil, fmt.Errorf("construct source adapter: no (auth_token, ct0) pairs found in cookie bundle")
	}
	return a, nil
}

// hostsInPreferredOrder returns the configured hosts starting with the one
// last observed to succeed.
func (a *Adapter) hostsInPreferredOrder() []string {
	a.mu.Lock()
	preferred := a.preferredHost
	a.mu.Unlock()

	ordered := make([]string, 0, len(a.hosts))
	ordered = append(ordered, a.hosts[preferred])
	for i, h := range a.hosts {
		if i != preferred {
			ordered = append(ordered, h)
		}
	}
	return ordered
}

func (a *Adapter) currentAuth() (authPair, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.authPairs[a.authIdx], a.bearers[a.bearerIdx]
}

// rotateAuth advances to the next auth-pair candidate. Returns false when
// the list is exhausted.
func (a *Adapter) rotateAuth() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.authIdx+1 >= len(a.authPairs) {
		return false
	}
	a.authIdx++
	return true
}

// rotateBearer advances to the next bearer-token candidate, resetting the
// auth-pair index to retry the full cross product. Returns false when the
// bearer list is also exhausted.
func (a *Adapter) rotateBearer() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bearerIdx+1 >= len(a.bearers) {
		return false
	}
	a.bearerIdx++
	a.authIdx = 0
	return true
}

func (a *Adapter) markPreferredHost(host string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, h := range a.hosts {
		if h == host {
			a.preferredHost = i
			return
		}
	}
}

type requestOutcome int

const (
	outcomeSuccess requestOutcome = iota
	outcomeRateLimit
	outcomeAuth
	outcomeGeneric
)

// doRequest issues a single GraphQL-style GET against host and classifies
// the outcome per spec.md §4.2.
func (a *Adapter) doRequest(ctx context.Context, host, path string, params url.Values) (graphqlEnvelope, requestOutcome, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return graphqlEnvelope{}, outcomeGeneric, err
	}

	reqURL := host + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return graphqlEnvelope{}, outcomeGeneric, err
	}

	pair, bearer := a.currentAuth()
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("x-csrf-token", pair.CT0)
	req.Header.Set("User-Agent", desktopUserAgent)
	req.Header.Set("Origin", host)
	req.Header.Set("Referer", host+"/")
	if gt := guestToken(a.bundle); gt != "" {
		req.Header.Set("x-guest-token", gt)
	}

	cookie := fmt.Sprintf("auth_token=%s; ct0=%s", pair.AuthToken, pair.CT0)
	if other := otherCookieHeader(a.bundle); other != "" {
		cookie += "; " + other
	}
	req.Header.Set("Cookie", cookie)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return graphqlEnvelope{}, outcomeGeneric, fmt.Errorf("request %s: %w", host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return graphqlEnvelope{}, outcomeGeneric, fmt.Errorf("read body from %s: %w", host, err)
	}

	var env graphqlEnvelope
	_ = json.Unmarshal(body, &env) // a non-JSON body still classifies on status code below

	outcome := classify(resp.StatusCode, env.Errors)
	if outcome == outcomeGeneric && resp.StatusCode >= 300 {
		return env, outcome, fmt.Errorf("%s returned HTTP %d: %s", host, resp.StatusCode, truncate(string(body), 200))
	}
	return env, outcome, nil
}

func classify(status int, errs []apiErrorEntry) requestOutcome {
	for _, e := range errs {
		if e.Code == 88 {
			return outcomeRateLimit
		}
	}
	if status == http.StatusTooManyRequests {
		return outcomeRateLimit
	}
	for _, e := range errs {
		if e.Code == 32 {
			return outcomeAuth
		}
	}
	if status == http.StatusUnauthorized {
		return outcomeAuth
	}
	if status >= 200 && status < 300 && len(errs) == 0 {
		return outcomeSuccess
	}
	return outcomeGeneric
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// requestWithFailover implements spec.md §4.2's three-attempt failover loop
// across hosts, with auth-pair then bearer-token rotation on auth failure.
func (a *Adapter) requestWithFailover(ctx context.Context, path string, params url.Values) (graphqlEnvelope, error) {
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		hosts := a.hostsInPreferredOrder()
		allRateLimited := true
		anyAuthFailure := false
		var rateLimitedHosts []string

		for _, host := range hosts {
			env, outcome, err := a.doRequest(ctx, host, path, params)
			switch outcome {
			case outcomeSuccess:
				a.markPreferredHost(host)
				return env, nil
			case outcomeRateLimit:
				rateLimitedHosts = append(rateLimitedHosts, host)
				lastErr = err
				if lastErr == nil {
					lastErr = fmt.Errorf("%s rate-limited", host)
				}
			case outcomeAuth:
				allRateLimited = false
				anyAuthFailure = true
				lastErr = err
				if lastErr == nil {
					lastErr = fmt.Errorf("%s rejected credentials", host)
				}
			default:
				allRateLimited = false
				lastErr = err
			}
		}

		if allRateLimited {
			a.logger.Warn().Strs("hosts", rateLimitedHosts).Msg("rate-limited on every host")
			return graphqlEnvelope{}, &RateLimitError{Hosts: rateLimitedHosts}
		}
		if anyAuthFailure {
			if a.rotateAuth() || a.rotateBearer() {
				a.logger.Warn().Err(lastErr).Msg("rotating credentials after auth failure")
				continue
			}
			return graphqlEnvelope{}, &AuthError{Err: lastErr}
		}
		return graphqlEnvelope{}, &GenericError{Err: lastErr}
	}
	return graphqlEnvelope{}, &GenericError{Err: fmt.Errorf("failover attempts exhausted: %w", lastErr)}
}

// CheckSession attempts a minimal "user-by-screen-name" query against a
// known public handle. LoggedIn is true when a host returned success and
// the handle resolved to a user id (spec.md §4.2); a successful response
// without a user id reports LoggedIn false.
func (a *Adapter) CheckSession(ctx context.Context) SessionStatus {
	_, err := a.resolveHandleToID(ctx, "twitter")
	if err != nil {
		return SessionStatus{LoggedIn: false, Reason: err.Error()}
	}
	a.mu.Lock()
	host := a.hosts[a.preferredHost]
	a.mu.Unlock()
	return SessionStatus{LoggedIn: true, Host: host}
}

// HealthCheck runs CheckSession then resolves handle to an id, returning an
// error on any failure (spec.md §4.2).
func (a *Adapter) HealthCheck(ctx context.Context, handle string) error {
	status := a.CheckSession(ctx)
	if !status.LoggedIn {
		return fmt.Errorf("session check failed: %s", status.Reason)
	}
	if _, err := a.resolveHandleToID(ctx, handle); err != nil {
		return fmt.Errorf("resolve handle %s: %w", handle, err)
	}
	return nil
}
