package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/thirtythreehz/crates/internal/shared"
	"github.com/thirtythreehz/crates/internal/signature"
)

// defaultMaxAttempts caps how many times one governed request may be issued
// when the provider answers 429. The window refills once per second, so five
// attempts is already generous.
const defaultMaxAttempts = 5

// defaultRetryDelay is used when a 429 arrives without a Retry-After header.
const defaultRetryDelay = time.Second

// APIError reports a non-2xx answer from the Discogs API, carrying the raw
// status and body for the caller.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discogs API error: status %d", e.Status)
}

// authorizer applies credentials to an outgoing request. params are the query
// parameters already attached to the request URL, needed by signing schemes
// that cover them.
type authorizer interface {
	authorize(req *http.Request, params url.Values)
}

// oauthAuthorizer signs every request with the consumer pair and the user's
// access pair (OAuth 1.0a, HMAC-SHA1).
type oauthAuthorizer struct {
	consumerKey    string
	consumerSecret string
	token          string
	secret         string
	now            func() time.Time
	nonce          func() string
}

func (a *oauthAuthorizer) authorize(req *http.Request, params url.Values) {
	oauth := url.Values{}
	oauth.Set("oauth_consumer_key", a.consumerKey)
	oauth.Set("oauth_nonce", a.nonce())
	oauth.Set("oauth_signature_method", "HMAC-SHA1")
	oauth.Set("oauth_timestamp", strconv.FormatInt(a.now().Unix(), 10))
	oauth.Set("oauth_token", a.token)
	oauth.Set("oauth_version", "1.0")

	signed := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			signed.Add(k, v)
		}
	}
	for k := range oauth {
		signed.Set(k, oauth.Get(k))
	}

	requestURL := req.URL.Scheme + "://" + req.URL.Host + req.URL.Path
	oauth.Set("oauth_signature", signature.Sign(req.Method, requestURL, signed, a.consumerSecret, a.secret))

	req.Header.Set("Authorization", signature.AuthorizationHeader(oauth))
}

// tokenAuthorizer sends a personal access token. No signing involved.
type tokenAuthorizer struct {
	token string
}

func (a *tokenAuthorizer) authorize(req *http.Request, params url.Values) {
	req.Header.Set("Authorization", "Discogs token="+a.token)
}

// Client is the single chokepoint for Discogs API traffic. Every catalog
// call flows through [Client.do], which consults the rate limiter, applies
// credentials, and turns non-2xx answers into [APIError].
//
// The client is safe for sequential use per owner; the engine serializes
// owners with a store lease.
type Client struct {
	baseURL        string
	userAgent      string
	httpClient     *http.Client
	auth           authorizer
	limiter        RateLimiter
	logger         *log.Logger
	consumerKey    string
	consumerSecret string
	maxAttempts    int

	// test seams
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// ClientOpts configures a [Client].
//
// Exactly one auth mode is used: a personal token when PersonalToken is set,
// otherwise the consumer pair plus Access pair for signed OAuth requests.
// A client built with only the consumer pair can run the authorization flow
// but not catalog calls.
type ClientOpts struct {
	ConsumerKey    string
	ConsumerSecret string
	PersonalToken  string
	Access         *CredentialPair
	UserAgent      string
	BaseURL        string
	HTTPClient     *http.Client
	Limiter        RateLimiter
	Logger         *log.Logger
	MaxAttempts    int
}

// NewClient creates a Discogs client from the provided options.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.PersonalToken == "" && opts.ConsumerKey == "" {
		return nil, fmt.Errorf("%w: personal token or consumer key required", shared.ErrMissingCredentials)
	}

	if opts.UserAgent == "" {
		opts.UserAgent = "crates/0.3 +https://github.com/thirtythreehz/crates"
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	if opts.Limiter == nil {
		opts.Limiter = NewQuotaGovernor(60, time.Minute)
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}

	c := &Client{
		baseURL:        opts.BaseURL,
		userAgent:      opts.UserAgent,
		httpClient:     opts.HTTPClient,
		limiter:        opts.Limiter,
		logger:         opts.Logger,
		consumerKey:    opts.ConsumerKey,
		consumerSecret: opts.ConsumerSecret,
		maxAttempts:    opts.MaxAttempts,
		now:            time.Now,
		sleep:          sleepContext,
	}

	switch {
	case opts.PersonalToken != "":
		c.auth = &tokenAuthorizer{token: opts.PersonalToken}
	case opts.Access != nil:
		c.auth = c.oauthAuth(*opts.Access)
	}

	return c, nil
}

// SetAccess installs a durable access pair, switching the client to signed
// OAuth requests. Called after the authorization flow completes.
func (c *Client) SetAccess(pair CredentialPair) {
	c.auth = c.oauthAuth(pair)
}

func (c *Client) oauthAuth(pair CredentialPair) *oauthAuthorizer {
	return &oauthAuthorizer{
		consumerKey:    c.consumerKey,
		consumerSecret: c.consumerSecret,
		token:          pair.Token,
		secret:         pair.Secret,
		now:            func() time.Time { return c.now() },
		nonce:          signature.Nonce,
	}
}

// Identity returns the authenticated user, the cheapest end-to-end check
// that credentials work.
func (c *Client) Identity(ctx context.Context) (*Identity, error) {
	var identity Identity
	if err := c.do(ctx, http.MethodGet, "/oauth/identity", nil, &identity); err != nil {
		return nil, err
	}
	return &identity, nil
}

// Collection fetches one page of the user's everything folder, newest
// additions first.
func (c *Client) Collection(ctx context.Context, username string, page, perPage int) (*CollectionPage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))
	params.Set("sort", "added")
	params.Set("sort_order", "desc")

	var out CollectionPage
	path := fmt.Sprintf("/users/%s/collection/folders/0/releases", url.PathEscape(username))
	if err := c.do(ctx, http.MethodGet, path, params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Master fetches a master release by id.
func (c *Client) Master(ctx context.Context, id int64) (*Master, error) {
	var out Master
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/masters/%d", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RateLimit reports the last quota state the limiter observed, when the
// configured limiter tracks one.
func (c *Client) RateLimit() (RateLimitState, bool) {
	if g, ok := c.limiter.(interface{ State() RateLimitState }); ok {
		return g.State(), true
	}
	return RateLimitState{}, false
}

// do performs a governed request against the Discogs API.
//
// Flow per attempt: acquire quota, issue the request with fresh credentials,
// feed the quota headers back to the limiter. A 429 sleeps the advertised
// Retry-After and re-issues the identical request, up to maxAttempts total;
// any other non-2xx returns an [APIError] with the raw body.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, result any) error {
	if c.auth == nil {
		return fmt.Errorf("%w: no access credentials configured", shared.ErrNotAuthenticated)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	for attempt := 1; ; attempt++ {
		if err := c.limiter.Acquire(ctx); err != nil {
			return fmt.Errorf("rate limit wait interrupted: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("User-Agent", c.userAgent)
		req.Header.Set("Accept", "application/json")
		c.auth.authorize(req, params)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
		}

		c.limiter.OnResponse(resp.Header)

		if resp.StatusCode == http.StatusTooManyRequests {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()

			if attempt >= c.maxAttempts {
				return &APIError{Status: resp.StatusCode, Body: string(body)}
			}

			wait := retryAfter(resp.Header)
			c.logger.Warn("rate limited by provider", "path", path, "retry_after", wait, "attempt", attempt)
			if err := c.sleep(ctx, wait); err != nil {
				return fmt.Errorf("rate limit wait interrupted: %w", err)
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return &APIError{Status: resp.StatusCode, Body: string(body)}
		}

		if result != nil {
			if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
				resp.Body.Close()
				return fmt.Errorf("failed to decode response: %w", err)
			}
		}

		return resp.Body.Close()
	}
}

// retryAfter reads the Retry-After header in seconds, falling back to one
// window slice when absent or malformed.
func retryAfter(h http.Header) time.Duration {
	if v := h.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs >= 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultRetryDelay
}
