package discogs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newConsumerClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{
		ConsumerKey:    "ck",
		ConsumerSecret: "cs",
		BaseURL:        serverURL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestAuthorizationFlow(t *testing.T) {
	t.Run("RequestToken", func(t *testing.T) {
		t.Run("returns the temporary pair", func(t *testing.T) {
			var gotMethod, gotPath, gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotPath = r.URL.Path
				gotAuth = r.Header.Get("Authorization")
				fmt.Fprint(w, "oauth_token=req_tok&oauth_token_secret=req_sec&oauth_callback_confirmed=true")
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			pair, err := c.RequestToken(context.Background(), "http://localhost:8976/callback")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if gotMethod != http.MethodPost {
				t.Errorf("method = %q, want POST", gotMethod)
			}
			if gotPath != "/oauth/request_token" {
				t.Errorf("path = %q", gotPath)
			}
			for _, part := range []string{`oauth_consumer_key="ck"`, "oauth_callback=", "oauth_signature="} {
				if !strings.Contains(gotAuth, part) {
					t.Errorf("Authorization %q missing %q", gotAuth, part)
				}
			}

			if pair.Token != "req_tok" {
				t.Errorf("Token = %q, want req_tok", pair.Token)
			}
			if pair.Secret != "req_sec" {
				t.Errorf("Secret = %q, want req_sec", pair.Secret)
			}
		})

		t.Run("missing token secret", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "oauth_token=req_tok")
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			_, err := c.RequestToken(context.Background(), "oob")

			var authErr *AuthProtocolError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthProtocolError, got %v", err)
			}
			if !strings.Contains(authErr.Reason, "oauth_token_secret") {
				t.Errorf("Reason = %q, want missing oauth_token_secret", authErr.Reason)
			}
		})

		t.Run("missing token", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "oauth_token_secret=req_sec")
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			_, err := c.RequestToken(context.Background(), "oob")

			var authErr *AuthProtocolError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthProtocolError, got %v", err)
			}
			if !strings.Contains(authErr.Reason, "oauth_token") {
				t.Errorf("Reason = %q, want missing oauth_token", authErr.Reason)
			}
		})

		t.Run("rejected consumer", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				fmt.Fprint(w, "Invalid consumer.")
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			_, err := c.RequestToken(context.Background(), "oob")

			var authErr *AuthProtocolError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthProtocolError, got %v", err)
			}
			if authErr.Status != http.StatusUnauthorized {
				t.Errorf("Status = %d, want 401", authErr.Status)
			}
			if authErr.Body != "Invalid consumer." {
				t.Errorf("Body = %q, want raw body", authErr.Body)
			}
		})

		t.Run("never retried", func(t *testing.T) {
			calls := 0
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			_, err := c.RequestToken(context.Background(), "oob")

			var authErr *AuthProtocolError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthProtocolError, got %v", err)
			}
			if calls != 1 {
				t.Errorf("server saw %d calls, want exactly 1", calls)
			}
		})

		t.Run("skips the catalog quota", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set(headerRateLimit, "60")
				w.Header().Set(headerRemaining, "59")
				fmt.Fprint(w, "oauth_token=a&oauth_token_secret=b")
			}))
			defer server.Close()

			limiter := &recordingLimiter{}
			c := newConsumerClient(t, server.URL)
			c.limiter = limiter

			if _, err := c.RequestToken(context.Background(), "oob"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if limiter.acquired != 0 {
				t.Errorf("Acquire called %d times, want 0", limiter.acquired)
			}
			if limiter.responses != 1 {
				t.Errorf("OnResponse called %d times, want 1", limiter.responses)
			}
		})
	})

	t.Run("AuthorizeURL", func(t *testing.T) {
		c := newConsumerClient(t, "http://unused")

		got := c.AuthorizeURL("req_tok")
		want := "https://www.discogs.com/oauth/authorize?oauth_token=req_tok"
		if got != want {
			t.Errorf("AuthorizeURL() = %q, want %q", got, want)
		}
	})

	t.Run("AccessToken", func(t *testing.T) {
		t.Run("exchanges the approved pair", func(t *testing.T) {
			var gotAuth string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/oauth/access_token" {
					t.Errorf("path = %q", r.URL.Path)
				}
				gotAuth = r.Header.Get("Authorization")
				fmt.Fprint(w, "oauth_token=acc_tok&oauth_token_secret=acc_sec")
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			pair, err := c.AccessToken(context.Background(), CredentialPair{Token: "req_tok", Secret: "req_sec"}, "verifier123")
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			for _, part := range []string{`oauth_token="req_tok"`, `oauth_verifier="verifier123"`} {
				if !strings.Contains(gotAuth, part) {
					t.Errorf("Authorization %q missing %q", gotAuth, part)
				}
			}

			if pair.Token != "acc_tok" || pair.Secret != "acc_sec" {
				t.Errorf("pair = %+v, want acc_tok/acc_sec", pair)
			}
		})

		t.Run("denied verifier", func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			}))
			defer server.Close()

			c := newConsumerClient(t, server.URL)
			_, err := c.AccessToken(context.Background(), CredentialPair{Token: "req_tok", Secret: "req_sec"}, "bad")

			var authErr *AuthProtocolError
			if !errors.As(err, &authErr) {
				t.Fatalf("expected AuthProtocolError, got %v", err)
			}
			if authErr.Op != "access_token" {
				t.Errorf("Op = %q, want access_token", authErr.Op)
			}
		})
	})

	t.Run("SetAccess switches to signed requests", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"id": 1, "username": "dusty"}`)
		}))
		defer server.Close()

		c := newConsumerClient(t, server.URL)
		c.SetAccess(CredentialPair{Token: "acc_tok", Secret: "acc_sec"})

		if _, err := c.Identity(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(gotAuth, `oauth_token="acc_tok"`) {
			t.Errorf("Authorization = %q, want signed with access token", gotAuth)
		}
	})
}
