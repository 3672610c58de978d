// Package approval mediates between a member's submitted payment proof
// and an operator's binary decision, guaranteeing a proof is credited at
// most once.
package approval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sdmedia/clubbot/internal/config"
	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/subscription"
	"github.com/sdmedia/clubbot/internal/transport"
)

// Decision action prefixes embedded in operator keyboard buttons. The
// action string is the only handle to a pending request: no request state
// is kept server-side.
const (
	actionApprove = "approve"
	actionReject  = "reject"
)

// DecisionKind is an operator's verdict on a submitted proof.
type DecisionKind string

const (
	DecisionApprove DecisionKind = actionApprove
	DecisionReject  DecisionKind = actionReject
)

// Workflow turns submitted proofs into operator decision requests and
// operator decisions into member-state mutations.
type Workflow struct {
	repo   store.Repository
	sender transport.Sender
	cfg    *config.Config
	today  func() time.Time
}

// New creates a Workflow. today defaults to the current UTC calendar date
// when nil; tests inject a fixed date.
func New(repo store.Repository, sender transport.Sender, cfg *config.Config, today func() time.Time) *Workflow {
	if today == nil {
		today = subscription.Today
	}
	return &Workflow{
		repo:   repo,
		sender: sender,
		cfg:    cfg,
		today:  today,
	}
}

// newRef mints a submission reference for operator-side correlation.
// ulid.Make uses the package's locked entropy, safe under concurrent
// dispatch.
func (w *Workflow) newRef() string {
	return ulid.Make().String()
}

// Submit forwards a member's proof to the operator channel with Approve
// and Reject actions embedding the member ID, then confirms receipt to
// the member. The forward must succeed; the member confirmation is
// best-effort.
func (w *Workflow) Submit(ctx context.Context, member domain.MemberRecord, proof transport.Proof) error {
	ref := w.newRef()

	username := member.Username
	if username == "" {
		username = "no_username"
	}
	caption := fmt.Sprintf(
		"Possible subscription payment.\nMember: @%s (id=%d)\nRef: %s\n\nCheck against the requisites. Approve to activate access and notify the member.",
		username, member.MemberID, ref,
	)
	keyboard := [][]transport.Button{{
		{Text: "Approve payment", Action: EncodeDecision(DecisionApprove, member.MemberID)},
		{Text: "Reject", Action: EncodeDecision(DecisionReject, member.MemberID)},
	}}

	if err := w.sender.ForwardProof(ctx, w.cfg.OperatorChatID, proof, caption, keyboard); err != nil {
		return fmt.Errorf("forward proof to operators: %w", err)
	}
	slog.Info("proof submitted", "member_id", member.MemberID, "ref", ref, "kind", proof.Kind)

	confirmation := "Your proof was passed to the curator. Access will be activated after review; you will be notified here."
	if err := w.sender.SendText(ctx, member.MemberID, confirmation, nil); err != nil {
		slog.Warn("failed to confirm submission to member", "member_id", member.MemberID, "error", err)
	}
	return nil
}

// Approve grants the configured subscription duration to the target
// member, refusing when the caller is not an operator, when the member ID
// encoding is broken, or when a live grant already exists. The member
// notification after a successful grant is best-effort: a failed delivery
// never rolls the grant back.
func (w *Workflow) Approve(ctx context.Context, operatorID, memberID int64) (time.Time, error) {
	if !w.cfg.IsOperator(operatorID) {
		return time.Time{}, domain.ErrPermission
	}

	today := subscription.Truncate(w.today())
	end := subscription.Grant(today, w.cfg.SubscriptionDays)

	granted, err := w.repo.GrantSubscription(ctx, memberID, end, today)
	if err != nil {
		return time.Time{}, fmt.Errorf("persist grant for member %d: %w", memberID, err)
	}
	if !granted {
		return time.Time{}, domain.ErrAlreadyGranted
	}
	slog.Info("subscription granted", "member_id", memberID, "operator_id", operatorID, "end", subscription.FormatDate(end))

	text := fmt.Sprintf("Your club access is active until %s. Welcome!", subscription.FormatDate(end))
	if err := w.sender.SendText(ctx, memberID, text, nil); err != nil {
		// Notify failed, grant stands.
		slog.Warn("failed to notify member of grant", "member_id", memberID, "error", err)
	}
	return end, nil
}

// Reject notifies the member their proof was not accepted. No state is
// mutated, so there is nothing to make idempotent beyond the permission
// gate.
func (w *Workflow) Reject(ctx context.Context, operatorID, memberID int64) error {
	if !w.cfg.IsOperator(operatorID) {
		return domain.ErrPermission
	}
	slog.Info("proof rejected", "member_id", memberID, "operator_id", operatorID)

	text := "The payment could not be confirmed. Check the amount and requisites, or contact the curator and we will sort it out."
	if err := w.sender.SendText(ctx, memberID, text, nil); err != nil {
		slog.Warn("failed to notify member of rejection", "member_id", memberID, "error", err)
	}
	return nil
}

// EncodeDecision builds the action string embedded in a decision button.
func EncodeDecision(kind DecisionKind, memberID int64) string {
	return string(kind) + ":" + strconv.FormatInt(memberID, 10)
}

// ParseDecision extracts the verdict and target member from a decision
// action. A tampered or stale encoding yields ErrValidation, never a
// crash or a grant to an arbitrary member.
func ParseDecision(action string) (DecisionKind, int64, error) {
	kind, rest, found := strings.Cut(action, ":")
	if !found {
		return "", 0, fmt.Errorf("%w: decision action %q has no member id", domain.ErrValidation, action)
	}
	if kind != actionApprove && kind != actionReject {
		return "", 0, fmt.Errorf("%w: unknown decision %q", domain.ErrValidation, kind)
	}
	memberID, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || memberID <= 0 {
		return "", 0, fmt.Errorf("%w: bad member id in decision action %q", domain.ErrValidation, action)
	}
	return DecisionKind(kind), memberID, nil
}

// IsDecision reports whether a button action encodes an operator decision.
func IsDecision(action string) bool {
	return strings.HasPrefix(action, actionApprove+":") || strings.HasPrefix(action, actionReject+":")
}
