package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/thirtythreehz/crates/internal/shared"
)

func TestCallbackHandler(t *testing.T) {
	t.Run("captures the verifier and renders the success page", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		req := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&oauth_verifier=verifier123", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "Authorization Successful") {
			t.Errorf("expected success page, got %s", rec.Body.String())
		}

		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("expected no error, got %v", result.Error())
		}
		if result.Token != "req_tok" || result.Verifier != "verifier123" {
			t.Errorf("unexpected result %+v", result)
		}

		if _, open := <-handler.Result(); open {
			t.Error("expected result channel closed after delivery")
		}
	})

	t.Run("rejects a mismatched token", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		req := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=someone_else&oauth_verifier=v", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Errorf("expected ErrAuthFailed, got %v", result.Error())
		}
	})

	t.Run("reports a declined authorization", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		req := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&denied=req_tok", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		result := <-handler.Result()
		if !errors.Is(result.Error(), shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", result.Error())
		}
		if !strings.Contains(result.Error().Error(), "declined") {
			t.Errorf("expected declined reason, got %v", result.Error())
		}
	})

	t.Run("reports a missing verifier", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		req := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		result := <-handler.Result()
		if result.Error() == nil || !strings.Contains(result.Error().Error(), "oauth_verifier") {
			t.Errorf("expected missing verifier error, got %v", result.Error())
		}
	})

	t.Run("processes only the first callback", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		first := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&oauth_verifier=first", nil)
		handler.ServeHTTP(httptest.NewRecorder(), first)

		second := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&oauth_verifier=second", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, second)

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected replay rejected with 400, got %d", rec.Code)
		}
		result := <-handler.Result()
		if result.Verifier != "first" {
			t.Errorf("expected the first verifier delivered, got %s", result.Verifier)
		}
	})

	t.Run("WaitForCallback returns the result", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		req := httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&oauth_verifier=verifier123", nil)
		handler.ServeHTTP(httptest.NewRecorder(), req)

		result, err := handler.WaitForCallback(context.Background())
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Verifier != "verifier123" {
			t.Errorf("expected verifier123, got %s", result.Verifier)
		}
	})

	t.Run("WaitForCallback times out with the context", func(t *testing.T) {
		handler := NewCallbackHandler("req_tok")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := handler.WaitForCallback(ctx)
		if !errors.Is(err, shared.ErrTimeout) {
			t.Errorf("expected ErrTimeout, got %v", err)
		}
	})
}

func TestBasicRouter(t *testing.T) {
	t.Run("filters methods", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
		if rec.Header().Get("Allow") != http.MethodGet {
			t.Errorf("expected Allow header, got %q", rec.Header().Get("Allow"))
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("applies middleware in registration order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("outer"), tag("inner"))
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

		want := []string{"outer", "inner", "handler"}
		if len(order) != len(want) {
			t.Fatalf("expected %v, got %v", want, order)
		}
		for i := range want {
			if order[i] != want[i] {
				t.Errorf("expected %v, got %v", want, order)
				break
			}
		}
	})

	t.Run("registers a Handler on its routes", func(t *testing.T) {
		router := NewBasicRouter()
		router.Use(Logging(shared.NewLogger(io.Discard)))
		router.Handler(NewCallbackHandler("req_tok"))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?oauth_token=req_tok&oauth_verifier=v", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected callback served through the router, got %d", rec.Code)
		}
	})
}
