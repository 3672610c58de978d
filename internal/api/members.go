package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/subscription"
)

// MemberHandler serves the operator-facing member endpoints: aggregate
// stats, individual records, and the subscription override. All routes
// sit behind the admin token middleware.
type MemberHandler struct {
	repo  store.Repository
	today func() time.Time
}

// NewMemberHandler creates a member handler. today defaults to the
// current UTC calendar date when nil.
func NewMemberHandler(repo store.Repository, today func() time.Time) *MemberHandler {
	if today == nil {
		today = subscription.Today
	}
	return &MemberHandler{repo: repo, today: today}
}

// RegisterRoutes registers member routes.
func (h *MemberHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.GetStats)
		r.Get("/members/{id}", h.GetMember)
		r.Put("/members/{id}/subscription", h.PutSubscription)
	})
}

type memberResponse struct {
	MemberID        int64  `json:"member_id"`
	Username        string `json:"username,omitempty"`
	SubscriptionEnd string `json:"subscription_end,omitempty"`
	PendingIntent   string `json:"pending_intent,omitempty"`
	Active          bool   `json:"active"`
}

func toMemberResponse(record domain.MemberRecord, today time.Time) memberResponse {
	resp := memberResponse{
		MemberID:      record.MemberID,
		Username:      record.Username,
		PendingIntent: string(record.PendingIntent),
		Active:        subscription.MemberActive(&record, today),
	}
	if record.SubscriptionEnd != nil {
		resp.SubscriptionEnd = subscription.FormatDate(*record.SubscriptionEnd)
	}
	return resp
}

// GetStats returns total member and active subscription counts.
func (h *MemberHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	records, err := h.repo.Snapshot(r.Context())
	if err != nil {
		slog.Error("stats snapshot failed", "error", err)
		Error(w, http.StatusInternalServerError, "failed to read members")
		return
	}

	JSON(w, http.StatusOK, map[string]int{
		"total_members":        len(records),
		"active_subscriptions": subscription.CountActive(records, h.today()),
	})
}

// GetMember returns one member record; unknown members yield the default
// record, mirroring the store contract.
func (h *MemberHandler) GetMember(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromRequest(r)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	record, err := h.repo.GetMember(r.Context(), memberID)
	if err != nil {
		slog.Error("member read failed", "member_id", memberID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to read member")
		return
	}
	JSON(w, http.StatusOK, toMemberResponse(record, h.today()))
}

type subscriptionRequest struct {
	End string `json:"end"`
}

// PutSubscription sets an exact subscription end-date, replacing any
// prior value. The date parse fails closed: malformed input is a 400,
// never a silent coercion.
func (h *MemberHandler) PutSubscription(w http.ResponseWriter, r *http.Request) {
	memberID, err := memberIDFromRequest(r)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid member id")
		return
	}

	var req subscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	end, err := subscription.ParseEndDate(req.End)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			Error(w, http.StatusBadRequest, fmt.Sprintf("end date must be %s", subscription.DateLayout))
			return
		}
		Error(w, http.StatusBadRequest, "invalid end date")
		return
	}

	record, err := h.repo.UpdateMember(r.Context(), memberID, domain.MemberPatch{SubscriptionEnd: &end})
	if err != nil {
		slog.Error("subscription override failed", "member_id", memberID, "error", err)
		Error(w, http.StatusInternalServerError, "failed to update member")
		return
	}
	slog.Info("subscription override via api", "member_id", memberID, "end", subscription.FormatDate(end))
	JSON(w, http.StatusOK, toMemberResponse(record, h.today()))
}

func memberIDFromRequest(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid member id")
	}
	return id, nil
}
