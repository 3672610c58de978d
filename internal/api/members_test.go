package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/subscription"
)

func fixedToday(t *testing.T, s string) func() time.Time {
	t.Helper()
	d, err := time.Parse(subscription.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return func() time.Time { return d }
}

func newTestRouter(t *testing.T) (chi.Router, store.Repository) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	r := chi.NewRouter()
	NewMemberHandler(repo, fixedToday(t, "2025-01-15")).RegisterRoutes(r)
	return r, repo
}

func TestGetStats(t *testing.T) {
	r, repo := newTestRouter(t)

	active, _ := time.Parse(subscription.DateLayout, "2025-02-01")
	expired, _ := time.Parse(subscription.DateLayout, "2024-12-31")
	if _, err := repo.UpdateMember(context.Background(), 1, domain.MemberPatch{SubscriptionEnd: &active}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := repo.UpdateMember(context.Background(), 2, domain.MemberPatch{SubscriptionEnd: &expired}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got map[string]int
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got["total_members"] != 2 || got["active_subscriptions"] != 1 {
		t.Errorf("unexpected stats: %v", got)
	}
}

func TestGetMemberUnknownYieldsDefaults(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/members/42", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got memberResponse
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.MemberID != 42 || got.Active || got.SubscriptionEnd != "" {
		t.Errorf("unexpected default record: %+v", got)
	}
}

func TestGetMemberInvalidID(t *testing.T) {
	r, _ := newTestRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/members/abc", nil))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestPutSubscription(t *testing.T) {
	r, repo := newTestRouter(t)

	body := strings.NewReader(`{"end":"2025-06-15"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/members/42/subscription", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	record, err := repo.GetMember(context.Background(), 42)
	if err != nil {
		t.Fatalf("get member: %v", err)
	}
	if record.SubscriptionEnd == nil || subscription.FormatDate(*record.SubscriptionEnd) != "2025-06-15" {
		t.Errorf("override not applied: %v", record.SubscriptionEnd)
	}
}

func TestPutSubscriptionMalformedDateFailsClosed(t *testing.T) {
	r, repo := newTestRouter(t)

	body := strings.NewReader(`{"end":"15.06.2025"}`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/members/42/subscription", body))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	record, _ := repo.GetMember(context.Background(), 42)
	if record.SubscriptionEnd != nil {
		t.Error("malformed date must not mutate the record")
	}
}
