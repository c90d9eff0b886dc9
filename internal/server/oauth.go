package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/thirtythreehz/crates/internal/shared"
)

// CallbackResult contains the result of an OAuth 1.0a authorization callback.
type CallbackResult struct {
	Token    string // request token echoed back by the provider
	Verifier string // verifier to exchange for the access token
	err      error
}

func (c *CallbackResult) Error() error {
	return c.err
}

// CallbackHandler handles OAuth 1.0a callback requests for the delegated
// authorization flow. Implements the Handler interface for registration with a Router.
//
// Unlike an OAuth2 code callback, the handler never talks to the provider:
// the access token exchange is a signed request owned by the catalog client,
// so the handler only validates the echoed token and captures the verifier.
type CallbackHandler struct {
	requestToken string
	resultChan   chan CallbackResult
	once         sync.Once
	callbackHit  bool
	mu           sync.Mutex
}

// NewCallbackHandler creates a callback handler for the given request token.
// The provider echoes the token back in the callback; a mismatch means the
// callback belongs to some other authorization attempt and is rejected.
func NewCallbackHandler(requestToken string) *CallbackHandler {
	return &CallbackHandler{
		requestToken: requestToken,
		resultChan:   make(chan CallbackResult, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
//
// Validates the echoed oauth_token, captures oauth_verifier, and sends the result through the result channel.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Only handle callback once
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	token := r.URL.Query().Get("oauth_token")
	if token != h.requestToken {
		err := fmt.Errorf("%w: callback oauth_token does not match the pending request token", shared.ErrAuthFailed)
		h.Send(CallbackResult{err: err})
		http.Error(w, "Unexpected oauth_token", http.StatusBadRequest)
		return
	}

	verifier := r.URL.Query().Get("oauth_verifier")
	if verifier == "" {
		// Discogs redirects with denied={token} when the user declines.
		err := fmt.Errorf("%w: authorization declined", shared.ErrAuthFailed)
		if r.URL.Query().Get("denied") == "" {
			err = fmt.Errorf("%w: callback missing oauth_verifier", shared.ErrAuthFailed)
		}
		h.Send(CallbackResult{err: err})
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.Send(CallbackResult{Token: token, Verifier: verifier})

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #333; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>✓ Authorization Successful</h1>
        <p>You can close this window and return to the terminal.</p>
    </div>
</body>
</html>
`)
}

// Send sends the callback result through the channel (only once).
func (h *CallbackHandler) Send(result CallbackResult) {
	h.once.Do(func() {
		h.resultChan <- result
		close(h.resultChan)
	})
}

// Result returns the result channel for receiving flow completion.
//
// Channel will receive exactly one result and then be closed.
func (h *CallbackHandler) Result() <-chan CallbackResult {
	return h.resultChan
}

// WaitForCallback blocks until the callback delivers a result or the context
// ends. Callers bound the wait with context.WithTimeout.
func (h *CallbackHandler) WaitForCallback(ctx context.Context) (CallbackResult, error) {
	select {
	case result := <-h.resultChan:
		if result.Error() != nil {
			return result, result.Error()
		}
		return result, nil
	case <-ctx.Done():
		return CallbackResult{}, fmt.Errorf("%w: no authorization callback received", shared.ErrTimeout)
	}
}
