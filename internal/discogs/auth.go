package discogs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/thirtythreehz/crates/internal/signature"
)

// AuthProtocolError reports a broken authorization handshake: the provider
// answered non-2xx, or answered 2xx with a body missing a required field.
// Handshake requests are never retried, a failed leg surfaces immediately.
type AuthProtocolError struct {
	Op     string
	Status int
	Body   string
	Reason string
}

func (e *AuthProtocolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("oauth %s failed: %s", e.Op, e.Reason)
	}
	return fmt.Sprintf("oauth %s failed: status %d", e.Op, e.Status)
}

// RequestToken performs the first handshake leg and returns a temporary
// credential pair. callbackURL is where the provider redirects the user's
// browser after approval; pass "oob" for out-of-band pin entry.
func (c *Client) RequestToken(ctx context.Context, callbackURL string) (*CredentialPair, error) {
	extra := url.Values{}
	extra.Set("oauth_callback", callbackURL)

	values, err := c.handshake(ctx, "request_token", "/oauth/request_token", extra, "")
	if err != nil {
		return nil, err
	}
	return pairFromValues("request_token", values)
}

// AuthorizeURL builds the browser URL where the user approves the request
// token.
func (c *Client) AuthorizeURL(requestToken string) string {
	return authorizeURL + "?oauth_token=" + url.QueryEscape(requestToken)
}

// AccessToken exchanges an approved request pair plus the verifier from the
// callback for the durable access pair. The caller is responsible for
// installing it with [Client.SetAccess] and persisting it.
func (c *Client) AccessToken(ctx context.Context, request CredentialPair, verifier string) (*CredentialPair, error) {
	extra := url.Values{}
	extra.Set("oauth_token", request.Token)
	extra.Set("oauth_verifier", verifier)

	values, err := c.handshake(ctx, "access_token", "/oauth/access_token", extra, request.Secret)
	if err != nil {
		return nil, err
	}
	return pairFromValues("access_token", values)
}

// handshake issues one signed leg of the authorization flow. Handshake
// traffic does not consume catalog quota, so it skips the limiter, but the
// response headers still feed it.
func (c *Client) handshake(ctx context.Context, op, path string, extra url.Values, tokenSecret string) (url.Values, error) {
	oauth := url.Values{}
	oauth.Set("oauth_consumer_key", c.consumerKey)
	oauth.Set("oauth_nonce", signature.Nonce())
	oauth.Set("oauth_signature_method", "HMAC-SHA1")
	oauth.Set("oauth_timestamp", strconv.FormatInt(c.now().Unix(), 10))
	oauth.Set("oauth_version", "1.0")
	for k := range extra {
		oauth.Set(k, extra.Get(k))
	}

	endpoint := c.baseURL + path
	oauth.Set("oauth_signature", signature.Sign(http.MethodPost, endpoint, oauth, c.consumerSecret, tokenSecret))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", signature.AuthorizationHeader(oauth))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oauth %s request failed: %w", op, err)
	}
	defer resp.Body.Close()

	c.limiter.OnResponse(resp.Header)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("oauth %s response unreadable: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &AuthProtocolError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}

	values, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, &AuthProtocolError{Op: op, Status: resp.StatusCode, Body: string(body), Reason: "malformed response body"}
	}
	return values, nil
}

// pairFromValues extracts the token pair from a handshake response body,
// treating a missing field as a protocol error.
func pairFromValues(op string, values url.Values) (*CredentialPair, error) {
	token := values.Get("oauth_token")
	secret := values.Get("oauth_token_secret")

	if token == "" {
		return nil, &AuthProtocolError{Op: op, Status: http.StatusOK, Body: values.Encode(), Reason: "response missing oauth_token"}
	}
	if secret == "" {
		return nil, &AuthProtocolError{Op: op, Status: http.StatusOK, Body: values.Encode(), Reason: "response missing oauth_token_secret"}
	}

	return &CredentialPair{Token: token, Secret: secret}, nil
}
