// Package intent decides what an inbound free-form message means for a
// member, given the single pending intent the bot is waiting on.
package intent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sdmedia/clubbot/internal/approval"
	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/transport"
)

// Machine routes free-form payloads against the member's pending intent.
// Every consumption path clears the intent and acts on the payload in one
// conditional store operation, so a second payload racing the first can
// never be double-consumed.
type Machine struct {
	repo           store.Repository
	approvals      *approval.Workflow
	sender         transport.Sender
	operatorChatID int64
}

// NewMachine creates a conversation state machine.
func NewMachine(repo store.Repository, approvals *approval.Workflow, sender transport.Sender, operatorChatID int64) *Machine {
	return &Machine{
		repo:           repo,
		approvals:      approvals,
		sender:         sender,
		operatorChatID: operatorChatID,
	}
}

// SetIntent records a new pending intent for the member. A different
// intent already pending is overwritten: switching context abandons the
// previous request silently.
func (m *Machine) SetIntent(ctx context.Context, memberID int64, username string, next domain.PendingIntent) error {
	patch := domain.MemberPatch{PendingIntent: &next}
	if username != "" {
		patch.Username = &username
	}
	if _, err := m.repo.UpdateMember(ctx, memberID, patch); err != nil {
		return fmt.Errorf("set intent %q for member %d: %w", next, memberID, err)
	}
	return nil
}

// HandleMessage classifies a free-form message. A member with no pending
// intent produces no state change and no outbound action; this branch is
// silent on purpose and is not an error.
func (m *Machine) HandleMessage(ctx context.Context, ev transport.Event) error {
	record, err := m.repo.GetMember(ctx, ev.SenderID)
	if err != nil {
		return fmt.Errorf("read member %d: %w", ev.SenderID, err)
	}

	switch record.PendingIntent {
	case domain.IntentNone:
		return nil
	case domain.IntentPaymentProof:
		return m.handleProof(ctx, record, ev)
	case domain.IntentSupportMessage:
		return m.handleSupport(ctx, record, ev)
	default:
		slog.Warn("member has unknown pending intent, ignoring message", "member_id", ev.SenderID, "intent", record.PendingIntent)
		return nil
	}
}

func (m *Machine) handleProof(ctx context.Context, record domain.MemberRecord, ev transport.Event) error {
	proof := transport.Proof{Kind: ev.Kind, Text: ev.Text, MediaRef: ev.MediaRef}
	if proof.Empty() {
		return nil
	}

	consumed, err := m.repo.ConsumeIntent(ctx, ev.SenderID, domain.IntentPaymentProof)
	if err != nil {
		return fmt.Errorf("consume payment intent for member %d: %w", ev.SenderID, err)
	}
	if !consumed {
		// A concurrent message already claimed this request.
		return nil
	}

	if ev.Username != "" {
		record.Username = ev.Username
	}
	return m.approvals.Submit(ctx, record, proof)
}

func (m *Machine) handleSupport(ctx context.Context, record domain.MemberRecord, ev transport.Event) error {
	// Only text reaches the curator; other payloads leave the intent set.
	if ev.Kind != transport.KindText || ev.Text == "" {
		return nil
	}

	consumed, err := m.repo.ConsumeIntent(ctx, ev.SenderID, domain.IntentSupportMessage)
	if err != nil {
		return fmt.Errorf("consume support intent for member %d: %w", ev.SenderID, err)
	}
	if !consumed {
		return nil
	}

	username := ev.Username
	if username == "" {
		username = record.Username
	}
	escalation := fmt.Sprintf("Support request from @%s (id=%d):\n%s", username, ev.SenderID, ev.Text)
	if err := m.sender.SendText(ctx, m.operatorChatID, escalation, nil); err != nil {
		return fmt.Errorf("escalate support message for member %d: %w", ev.SenderID, err)
	}

	confirmation := "Your message was passed to the curator. The answer will arrive here."
	if err := m.sender.SendText(ctx, ev.SenderID, confirmation, nil); err != nil {
		slog.Warn("failed to confirm support escalation", "member_id", ev.SenderID, "error", err)
	}
	return nil
}
