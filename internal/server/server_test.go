package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/desertthunder/spondex/internal/tasks"
	"golang.org/x/oauth2"
)

func TestRouter(t *testing.T) {
	t.Run("method filtering", func(t *testing.T) {
		router := NewRouter()
		router.Handle(http.MethodGet, "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405 for POST, got %d", rec.Code)
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200 for GET, got %d", rec.Code)
		}
	})

	t.Run("middleware applied in order", func(t *testing.T) {
		var order []string
		mw := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewRouter()
		router.Use(mw("first"), mw("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		if len(order) != 2 || order[0] != "first" || order[1] != "second" {
			t.Errorf("expected first, second; got %v", order)
		}
	})
}

func TestStatusHandler(t *testing.T) {
	t.Run("healthy loop", func(t *testing.T) {
		passAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		handler := NewStatusHandler("spondex", func() tasks.PassStatus {
			return tasks.PassStatus{LastPassAt: passAt, Passes: 3}
		})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if payload["service"] != "spondex" {
			t.Errorf("expected service spondex, got %v", payload["service"])
		}
		if payload["healthy"] != true {
			t.Errorf("expected healthy true, got %v", payload["healthy"])
		}
		if payload["passes"] != float64(3) {
			t.Errorf("expected 3 passes, got %v", payload["passes"])
		}
		if _, ok := payload["uptime_seconds"]; !ok {
			t.Error("expected uptime_seconds field")
		}
		if _, ok := payload["last_error"]; ok {
			t.Error("expected last_error omitted when empty")
		}
	})

	t.Run("failing loop reports unhealthy", func(t *testing.T) {
		handler := NewStatusHandler("spondex", func() tasks.PassStatus {
			return tasks.PassStatus{Failures: 1, LastError: "track sync: boom"}
		})

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

		var payload map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if payload["healthy"] != false {
			t.Errorf("expected healthy false, got %v", payload["healthy"])
		}
		if payload["last_error"] != "track sync: boom" {
			t.Errorf("expected last_error, got %v", payload["last_error"])
		}
	})

	t.Run("rejects non-GET", func(t *testing.T) {
		handler := NewStatusHandler("spondex", func() tasks.PassStatus { return tasks.PassStatus{} })
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/status", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestOAuthHandler(t *testing.T) {
	exchange := func(token *oauth2.Token, err error) ExchangeFunc {
		return func(ctx context.Context, code string) (*oauth2.Token, error) {
			return token, err
		}
	}

	t.Run("successful callback delivers token", func(t *testing.T) {
		want := &oauth2.Token{AccessToken: "access"}
		handler := NewOAuthHandler(exchange(want, nil), "state123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		result := <-handler.Result()
		if result.Error() != nil {
			t.Fatalf("unexpected error: %v", result.Error())
		}
		if result.Token.AccessToken != "access" {
			t.Errorf("expected delivered token, got %v", result.Token)
		}
	})

	t.Run("state mismatch rejected", func(t *testing.T) {
		handler := NewOAuthHandler(exchange(nil, nil), "expected")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=forged&code=abc", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected state error")
		}
	})

	t.Run("provider error without code", func(t *testing.T) {
		handler := NewOAuthHandler(exchange(nil, nil), "state123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state123&error=access_denied", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
		if result := <-handler.Result(); result.Error() == nil {
			t.Error("expected authorization error")
		}
	})

	t.Run("exchange failure", func(t *testing.T) {
		handler := NewOAuthHandler(exchange(nil, fmt.Errorf("upstream down")), "state123")

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})

	t.Run("second callback rejected", func(t *testing.T) {
		handler := NewOAuthHandler(exchange(&oauth2.Token{}, nil), "state123")

		first := httptest.NewRecorder()
		handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil))
		second := httptest.NewRecorder()
		handler.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/callback?state=state123&code=abc", nil))

		if second.Code != http.StatusBadRequest {
			t.Errorf("expected replayed callback rejected, got %d", second.Code)
		}
	})
}
