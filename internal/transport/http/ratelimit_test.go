package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/cimillas/perishable-market/internal/domain"
	ratelimit "github.com/cimillas/perishable-market/internal/storage/redis"
)

// countingLimiter allows the first n calls per key.
type countingLimiter struct {
	mu    sync.Mutex
	n     int
	seen  map[string]int
	err   error
	calls []string
}

func (l *countingLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, key)
	if l.err != nil {
		return ratelimit.Decision{}, l.err
	}
	if l.seen == nil {
		l.seen = map[string]int{}
	}
	l.seen[key]++
	remaining := l.n - l.seen[key]
	if remaining < 0 {
		return ratelimit.Decision{Allowed: false, ResetIn: 1500 * time.Millisecond}, nil
	}
	return ratelimit.Decision{Allowed: true, Remaining: remaining, ResetIn: time.Minute}, nil
}

func okCart() *stubCart {
	return &stubCart{validate: func([]domain.CartLine) (domain.ValidationReport, error) {
		return domain.ValidationReport{Valid: true}, nil
	}}
}

func TestRateLimit_ThrottlesPerPrincipal(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{n: 2}
	router := NewRouter(RouterDeps{Cart: okCart(), Limiter: limiter, RateLimit: 2})
	body := `{"lines":[{"item_id":"a","quantity":1,"price":"1.00"}]}`

	for i := 0; i < 2; i++ {
		rec := do(t, router, http.MethodPost, "/cart/validate", body, asCustomer)
		if rec.Code != http.StatusOK {
			t.Fatalf("call %d: expected 200, got %d", i, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "2" {
			t.Fatalf("expected limit header 2, got %q", got)
		}
	}

	rec := do(t, router, http.MethodPost, "/cart/validate", body, asCustomer)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "1" {
		t.Fatalf("expected Retry-After 1, got %q", got)
	}
	assertErrorCode(t, rec, codeRateLimited)

	other := domain.Principal{ID: "cust-2", Role: domain.RoleCustomer}
	if rec := do(t, router, http.MethodPost, "/cart/validate", body, other); rec.Code != http.StatusOK {
		t.Fatalf("expected separate budget for another principal, got %d", rec.Code)
	}
}

func TestRateLimit_FailsOpen(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{err: errors.New("redis down")}
	router := NewRouter(RouterDeps{Cart: okCart(), Limiter: limiter, RateLimit: 1})

	rec := do(t, router, http.MethodPost, "/cart/validate", `{"lines":[{"item_id":"a","quantity":1,"price":"1.00"}]}`, asCustomer)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
	if len(limiter.calls) != 1 || limiter.calls[0] != "cust-1" {
		t.Fatalf("expected limiter keyed by principal, got %v", limiter.calls)
	}
}

func TestRateLimit_ReadsAreNotThrottled(t *testing.T) {
	t.Parallel()

	limiter := &countingLimiter{n: 0}
	svc := &stubOrders{get: func(domain.Principal, string) (domain.OrderDetail, error) {
		return domain.OrderDetail{Order: sampleOrder()}, nil
	}}
	router := NewRouter(RouterDeps{Orders: svc, Limiter: limiter, RateLimit: 0})

	if rec := do(t, router, http.MethodGet, "/orders/order-1", "", asCustomer); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(limiter.calls) != 0 {
		t.Fatalf("expected no limiter calls, got %v", limiter.calls)
	}
}
