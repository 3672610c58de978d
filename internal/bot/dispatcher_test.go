package bot

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sdmedia/clubbot/internal/approval"
	"github.com/sdmedia/clubbot/internal/config"
	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/intent"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/subscription"
	"github.com/sdmedia/clubbot/internal/transport"
)

const (
	operatorID    = int64(931831277)
	nonOperatorID = int64(1)
	memberID      = int64(42)
)

type sentText struct {
	recipientID int64
	text        string
	keyboard    [][]transport.Button
}

type fakeSender struct {
	texts    []sentText
	forwards []transport.Proof
	albums   int
}

func (f *fakeSender) SendText(ctx context.Context, recipientID int64, text string, keyboard [][]transport.Button) error {
	f.texts = append(f.texts, sentText{recipientID, text, keyboard})
	return nil
}

func (f *fakeSender) SendAlbum(ctx context.Context, recipientID int64, photos []string, caption string) error {
	f.albums++
	return nil
}

func (f *fakeSender) ForwardProof(ctx context.Context, operatorChatID int64, proof transport.Proof, caption string, keyboard [][]transport.Button) error {
	f.forwards = append(f.forwards, proof)
	return nil
}

func (f *fakeSender) lastText(t *testing.T) sentText {
	t.Helper()
	if len(f.texts) == 0 {
		t.Fatal("expected at least one outbound text")
	}
	return f.texts[len(f.texts)-1]
}

func fixedToday(t *testing.T, s string) func() time.Time {
	t.Helper()
	d, err := time.Parse(subscription.DateLayout, s)
	if err != nil {
		t.Fatalf("parse date: %v", err)
	}
	return func() time.Time { return d }
}

func newTestDispatcher(t *testing.T) (*Dispatcher, store.Repository, *fakeSender) {
	t.Helper()
	repo, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	cfg := &config.Config{
		OperatorIDs:       []int64{operatorID},
		OperatorChatID:    operatorID,
		SubscriptionDays:  30,
		SubscriptionPrice: 590,
		PayeeName:         "Club Treasury",
		PayeeBank:         "Acme Bank",
		PayeeAccount:      "0000 1111 2222 3333",
	}
	sender := &fakeSender{}
	today := fixedToday(t, "2025-01-01")
	approvals := approval.New(repo, sender, cfg, today)
	machine := intent.NewMachine(repo, approvals, sender, cfg.OperatorChatID)
	return NewDispatcher(cfg, repo, machine, approvals, sender, today), repo, sender
}

func command(senderID int64, name, args string) transport.Event {
	return transport.Event{Type: transport.EventCommand, SenderID: senderID, Command: name, Args: args}
}

func button(senderID int64, action string) transport.Event {
	return transport.Event{Type: transport.EventButton, SenderID: senderID, Action: action}
}

func TestStartRendersMenu(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), command(memberID, "/start", "")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	msg := sender.lastText(t)
	if msg.recipientID != memberID {
		t.Errorf("welcome sent to %d", msg.recipientID)
	}
	if len(msg.keyboard) == 0 {
		t.Error("expected main menu keyboard")
	}
}

func TestStatsOperatorOnly(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	end := subscription.Grant(fixedToday(t, "2025-01-01")(), 30)
	if _, err := repo.UpdateMember(ctx, memberID, domain.MemberPatch{SubscriptionEnd: &end}); err != nil {
		t.Fatalf("seed member: %v", err)
	}

	// Non-operators are ignored silently.
	if err := d.Dispatch(ctx, command(nonOperatorID, "/stats", "")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.texts) != 0 {
		t.Fatal("non-operator /stats must produce no reply")
	}

	if err := d.Dispatch(ctx, command(operatorID, "/stats", "")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	msg := sender.lastText(t)
	if !strings.Contains(msg.text, "Total members: 1") || !strings.Contains(msg.text, "Active subscriptions: 1") {
		t.Errorf("unexpected stats text: %q", msg.text)
	}
}

func TestSetSub(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	// Non-operators are ignored silently.
	if err := d.Dispatch(ctx, command(nonOperatorID, "/set_sub", "2025-06-15 42")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(sender.texts) != 0 {
		t.Fatal("non-operator /set_sub must produce no reply")
	}
	record, _ := repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd != nil {
		t.Fatal("non-operator /set_sub must not mutate the record")
	}

	// Malformed dates fail closed with a visible format error.
	if err := d.Dispatch(ctx, command(operatorID, "/set_sub", "15-06-2025 42")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(sender.lastText(t).text, "YYYY-MM-DD") {
		t.Errorf("expected format error, got %q", sender.lastText(t).text)
	}
	record, _ = repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd != nil {
		t.Fatal("malformed date must not mutate the record")
	}

	if err := d.Dispatch(ctx, command(operatorID, "/set_sub", "2025-06-15 42")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	record, _ = repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd == nil || subscription.FormatDate(*record.SubscriptionEnd) != "2025-06-15" {
		t.Errorf("override not applied: %v", record.SubscriptionEnd)
	}
}

func TestSetSubTargetsRepliedMember(t *testing.T) {
	ctx := context.Background()
	d, repo, _ := newTestDispatcher(t)

	ev := command(operatorID, "/set_sub", "2025-06-15")
	ev.ReplyToSenderID = memberID
	if err := d.Dispatch(ctx, ev); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	record, _ := repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd == nil || subscription.FormatDate(*record.SubscriptionEnd) != "2025-06-15" {
		t.Errorf("override not applied to replied member: %v", record.SubscriptionEnd)
	}
}

func TestPayButtonSetsIntent(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	if err := d.Dispatch(ctx, button(memberID, actionPay)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	record, _ := repo.GetMember(ctx, memberID)
	if record.PendingIntent != domain.IntentPaymentProof {
		t.Errorf("expected payment intent, got %q", record.PendingIntent)
	}
	if !strings.Contains(sender.lastText(t).text, "Acme Bank") {
		t.Errorf("pay screen missing requisites: %q", sender.lastText(t).text)
	}
}

func TestSupportButtonSetsIntent(t *testing.T) {
	ctx := context.Background()
	d, repo, _ := newTestDispatcher(t)

	if err := d.Dispatch(ctx, button(memberID, actionSupport)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	record, _ := repo.GetMember(ctx, memberID)
	if record.PendingIntent != domain.IntentSupportMessage {
		t.Errorf("expected support intent, got %q", record.PendingIntent)
	}
}

func TestAccessScreenForUnknownMember(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), button(memberID, actionAccess)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(sender.lastText(t).text, "no active access") {
		t.Errorf("unexpected access text: %q", sender.lastText(t).text)
	}
}

func TestDecisionApprove(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	action := approval.EncodeDecision(approval.DecisionApprove, memberID)
	if err := d.Dispatch(ctx, button(operatorID, action)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	record, _ := repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd == nil || subscription.FormatDate(*record.SubscriptionEnd) != "2025-01-31" {
		t.Errorf("grant not applied: %v", record.SubscriptionEnd)
	}
	if !strings.Contains(sender.lastText(t).text, "2025-01-31") {
		t.Errorf("operator confirmation missing end date: %q", sender.lastText(t).text)
	}

	// Double-click: refused with a notice, record unchanged.
	if err := d.Dispatch(ctx, button(operatorID, action)); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if !strings.Contains(sender.lastText(t).text, "Already activated") {
		t.Errorf("expected already-granted notice, got %q", sender.lastText(t).text)
	}
	record, _ = repo.GetMember(ctx, memberID)
	if subscription.FormatDate(*record.SubscriptionEnd) != "2025-01-31" {
		t.Errorf("record mutated by refused approve: %v", record.SubscriptionEnd)
	}
}

func TestDecisionPermissionGate(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	action := approval.EncodeDecision(approval.DecisionApprove, memberID)
	if err := d.Dispatch(ctx, button(nonOperatorID, action)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if !strings.Contains(sender.lastText(t).text, "Not enough rights") {
		t.Errorf("expected permission notice, got %q", sender.lastText(t).text)
	}
	record, _ := repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd != nil {
		t.Error("non-operator decision must not mutate the record")
	}
}

func TestDecisionMalformedAction(t *testing.T) {
	d, _, sender := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), button(operatorID, "approve:not-a-number")); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !strings.Contains(sender.lastText(t).text, "Data error") {
		t.Errorf("expected data error notice, got %q", sender.lastText(t).text)
	}
}

func TestDecisionReject(t *testing.T) {
	ctx := context.Background()
	d, repo, sender := newTestDispatcher(t)

	action := approval.EncodeDecision(approval.DecisionReject, memberID)
	if err := d.Dispatch(ctx, button(operatorID, action)); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if !strings.Contains(sender.lastText(t).text, "not confirmed") {
		t.Errorf("expected rejection notice, got %q", sender.lastText(t).text)
	}
	record, _ := repo.GetMember(ctx, memberID)
	if record.SubscriptionEnd != nil {
		t.Error("reject must not mutate the record")
	}
}
