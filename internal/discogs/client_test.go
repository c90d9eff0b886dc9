package discogs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/thirtythreehz/crates/internal/shared"
)

const collectionBody = `{
	"pagination": {"page": 1, "pages": 1, "per_page": 100, "items": 1},
	"releases": [
		{"instance_id": 101, "rating": 5, "date_added": "2024-02-10T18:04:00-08:00",
		 "basic_information": {"id": 11, "master_id": 7, "title": "Lonerism", "year": 2012,
			"artists": [{"name": "Tame Impala"}]}}
	]
}`

func newTokenClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{
		PersonalToken: "pat_secret",
		BaseURL:       serverURL,
		UserAgent:     "crates-test/1.0",
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return c
}

func TestClient(t *testing.T) {
	t.Run("NewClient", func(t *testing.T) {
		t.Run("requires some credential", func(t *testing.T) {
			_, err := NewClient(ClientOpts{})
			if !errors.Is(err, shared.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})

		t.Run("personal token is enough", func(t *testing.T) {
			c, err := NewClient(ClientOpts{PersonalToken: "pat"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if c.auth == nil {
				t.Error("expected token authorizer to be installed")
			}
		})

		t.Run("consumer pair alone cannot call the catalog", func(t *testing.T) {
			c, err := NewClient(ClientOpts{ConsumerKey: "ck", ConsumerSecret: "cs"})
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			_, err = c.Identity(context.Background())
			if !errors.Is(err, shared.ErrNotAuthenticated) {
				t.Errorf("expected ErrNotAuthenticated, got %v", err)
			}
		})
	})

	t.Run("Collection", func(t *testing.T) {
		var gotPath, gotQuery, gotUA, gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			gotQuery = r.URL.RawQuery
			gotUA = r.Header.Get("User-Agent")
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, collectionBody)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)
		page, err := c.Collection(context.Background(), "dusty fingers", 2, 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if gotPath != "/users/dusty%20fingers/collection/folders/0/releases" {
			t.Errorf("path = %q", gotPath)
		}
		for _, param := range []string{"page=2", "per_page=100", "sort=added", "sort_order=desc"} {
			if !strings.Contains(gotQuery, param) {
				t.Errorf("query %q missing %q", gotQuery, param)
			}
		}
		if gotUA != "crates-test/1.0" {
			t.Errorf("User-Agent = %q", gotUA)
		}
		if gotAuth != "Discogs token=pat_secret" {
			t.Errorf("Authorization = %q", gotAuth)
		}

		if page.Pagination.Items != 1 {
			t.Errorf("Items = %d, want 1", page.Pagination.Items)
		}
		if len(page.Releases) != 1 || page.Releases[0].Basic.Title != "Lonerism" {
			t.Errorf("unexpected releases: %+v", page.Releases)
		}
	})

	t.Run("Master", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/masters/29949" {
				t.Errorf("path = %q", r.URL.Path)
			}
			fmt.Fprint(w, `{"id": 29949, "year": 1996, "genres": ["Electronic"], "styles": ["Post Rock"]}`)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)
		master, err := c.Master(context.Background(), 29949)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if master.Year != 1996 {
			t.Errorf("Year = %d, want 1996", master.Year)
		}
		if len(master.Genres) != 1 || master.Genres[0] != "Electronic" {
			t.Errorf("Genres = %v", master.Genres)
		}
	})

	t.Run("signed requests", func(t *testing.T) {
		var gotAuth string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{"id": 1, "username": "dusty"}`)
		}))
		defer server.Close()

		c, err := NewClient(ClientOpts{
			ConsumerKey:    "ck",
			ConsumerSecret: "cs",
			Access:         &CredentialPair{Token: "tok", Secret: "toksec"},
			BaseURL:        server.URL,
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		identity, err := c.Identity(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if identity.Username != "dusty" {
			t.Errorf("Username = %q, want dusty", identity.Username)
		}

		if !strings.HasPrefix(gotAuth, "OAuth ") {
			t.Fatalf("Authorization = %q, want OAuth header", gotAuth)
		}
		for _, part := range []string{`oauth_consumer_key="ck"`, `oauth_token="tok"`, `oauth_signature_method="HMAC-SHA1"`, "oauth_signature="} {
			if !strings.Contains(gotAuth, part) {
				t.Errorf("Authorization %q missing %q", gotAuth, part)
			}
		}
	})

	t.Run("quota headers feed the limiter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(headerRateLimit, "60")
			w.Header().Set(headerRemaining, "42")
			fmt.Fprint(w, `{"id": 1, "username": "dusty"}`)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)
		if _, err := c.Identity(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		state, ok := c.RateLimit()
		if !ok {
			t.Fatal("expected tracked rate limit state")
		}
		if state.Limit != 60 || state.Remaining != 42 {
			t.Errorf("state = %+v, want 60/42", state)
		}
	})

	t.Run("429 sleeps Retry-After then retries once", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.Header().Set("Retry-After", "3")
				w.WriteHeader(http.StatusTooManyRequests)
				fmt.Fprint(w, `{"message": "too many requests"}`)
				return
			}
			fmt.Fprint(w, collectionBody)
		}))
		defer server.Close()

		limiter := &recordingLimiter{}
		c := newTokenClient(t, server.URL)
		c.limiter = limiter

		var slept []time.Duration
		c.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		page, err := c.Collection(context.Background(), "dusty", 1, 100)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(page.Releases) != 1 {
			t.Errorf("got %d releases, want 1", len(page.Releases))
		}

		if calls != 2 {
			t.Errorf("server saw %d calls, want 2", calls)
		}
		if len(slept) != 1 || slept[0] != 3*time.Second {
			t.Errorf("slept %v, want [3s]", slept)
		}
		if limiter.acquired != 2 {
			t.Errorf("Acquire called %d times, want once per attempt", limiter.acquired)
		}
		if limiter.responses != 2 {
			t.Errorf("OnResponse called %d times, want 2", limiter.responses)
		}
	})

	t.Run("429 without Retry-After uses fallback delay", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				w.WriteHeader(http.StatusTooManyRequests)
				return
			}
			fmt.Fprint(w, `{"id": 1, "username": "dusty"}`)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)

		var slept []time.Duration
		c.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		if _, err := c.Identity(context.Background()); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(slept) != 1 || slept[0] != time.Second {
			t.Errorf("slept %v, want [1s]", slept)
		}
	})

	t.Run("429 gives up at the attempt ceiling", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			fmt.Fprint(w, `{"message": "slow down"}`)
		}))
		defer server.Close()

		c, err := NewClient(ClientOpts{
			PersonalToken: "pat",
			BaseURL:       server.URL,
			MaxAttempts:   3,
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		var slept []time.Duration
		c.sleep = func(ctx context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		}

		_, err = c.Identity(context.Background())

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != http.StatusTooManyRequests {
			t.Errorf("Status = %d, want 429", apiErr.Status)
		}
		if calls != 3 {
			t.Errorf("server saw %d calls, want 3", calls)
		}
		if len(slept) != 2 {
			t.Errorf("slept %d times, want 2", len(slept))
		}
	})

	t.Run("other failures are not retried", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusInternalServerError)
			fmt.Fprint(w, `{"message": "upstream broke"}`)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)
		_, err := c.Identity(context.Background())

		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("expected APIError, got %v", err)
		}
		if apiErr.Status != http.StatusInternalServerError {
			t.Errorf("Status = %d, want 500", apiErr.Status)
		}
		if !strings.Contains(apiErr.Body, "upstream broke") {
			t.Errorf("Body = %q, want raw body preserved", apiErr.Body)
		}
		if calls != 1 {
			t.Errorf("server saw %d calls, want 1", calls)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		c, err := NewClient(ClientOpts{
			PersonalToken: "pat",
			HTTPClient:    &http.Client{Transport: &failingTransport{}},
		})
		if err != nil {
			t.Fatalf("failed to create client: %v", err)
		}

		_, err = c.Identity(context.Background())
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
	})

	t.Run("malformed success body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"id": `)
		}))
		defer server.Close()

		c := newTokenClient(t, server.URL)
		if _, err := c.Identity(context.Background()); err == nil {
			t.Error("expected decode error")
		}
	})
}

func TestRetryAfter(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"seconds", "3", 3 * time.Second},
		{"zero", "0", 0},
		{"absent", "", time.Second},
		{"malformed", "soon", time.Second},
		{"negative", "-2", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.value != "" {
				h.Set("Retry-After", tt.value)
			}
			if got := retryAfter(h); got != tt.want {
				t.Errorf("retryAfter(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

// recordingLimiter counts limiter traffic without ever blocking
type recordingLimiter struct {
	acquired  int
	responses int
}

func (l *recordingLimiter) Acquire(ctx context.Context) error { l.acquired++; return nil }
func (l *recordingLimiter) OnResponse(h http.Header)          { l.responses++ }

// failingTransport breaks every request before it leaves the process
type failingTransport struct{}

func (f *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}
