// Package bot classifies inbound transport events and dispatches each to
// exactly one handler. No handler polls; every state transition is driven
// by an event arriving here.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/sdmedia/clubbot/internal/approval"
	"github.com/sdmedia/clubbot/internal/config"
	"github.com/sdmedia/clubbot/internal/domain"
	"github.com/sdmedia/clubbot/internal/intent"
	"github.com/sdmedia/clubbot/internal/store"
	"github.com/sdmedia/clubbot/internal/subscription"
	"github.com/sdmedia/clubbot/internal/transport"
)

// Dispatcher routes commands, button presses and free-form messages.
// It is safe for concurrent use: all member state flows through the
// store's atomic per-key operations.
type Dispatcher struct {
	cfg       *config.Config
	repo      store.Repository
	machine   *intent.Machine
	approvals *approval.Workflow
	sender    transport.Sender
	today     func() time.Time
}

// NewDispatcher creates a Dispatcher. today defaults to the current UTC
// calendar date when nil.
func NewDispatcher(cfg *config.Config, repo store.Repository, machine *intent.Machine, approvals *approval.Workflow, sender transport.Sender, today func() time.Time) *Dispatcher {
	if today == nil {
		today = subscription.Today
	}
	return &Dispatcher{
		cfg:       cfg,
		repo:      repo,
		machine:   machine,
		approvals: approvals,
		sender:    sender,
		today:     today,
	}
}

// Dispatch routes one inbound event to its handler.
func (d *Dispatcher) Dispatch(ctx context.Context, ev transport.Event) error {
	switch ev.Type {
	case transport.EventCommand:
		return d.handleCommand(ctx, ev)
	case transport.EventButton:
		return d.handleButton(ctx, ev)
	case transport.EventMessage:
		return d.machine.HandleMessage(ctx, ev)
	default:
		slog.Warn("unknown event type", "type", ev.Type, "sender_id", ev.SenderID)
		return nil
	}
}

func (d *Dispatcher) handleCommand(ctx context.Context, ev transport.Event) error {
	switch strings.TrimPrefix(ev.Command, "/") {
	case "start":
		name := ev.Username
		if name == "" {
			name = "there"
		}
		return d.sender.SendText(ctx, ev.SenderID, welcomeText(name), mainMenuKeyboard())
	case "menu":
		return d.sender.SendText(ctx, ev.SenderID, menuText, mainMenuKeyboard())
	case "set_sub":
		return d.handleSetSub(ctx, ev)
	case "stats":
		return d.handleStats(ctx, ev)
	default:
		// Unknown commands are ignored like any other unsolicited input.
		return nil
	}
}

// handleSetSub is the administrative override: /set_sub YYYY-MM-DD [id],
// or issued as a reply to the target member. Non-operators are ignored
// silently; a malformed date gets a visible format error.
func (d *Dispatcher) handleSetSub(ctx context.Context, ev transport.Event) error {
	if !d.cfg.IsOperator(ev.SenderID) {
		return nil
	}

	fields := strings.Fields(ev.Args)
	if len(fields) == 0 {
		return d.sender.SendText(ctx, ev.SenderID, "Format: /set_sub YYYY-MM-DD [member id] (or reply to the member).", nil)
	}

	end, err := subscription.ParseEndDate(fields[0])
	if err != nil {
		return d.sender.SendText(ctx, ev.SenderID, "Wrong format. Use YYYY-MM-DD.", nil)
	}

	target := ev.SenderID
	if ev.ReplyToSenderID != 0 {
		target = ev.ReplyToSenderID
	}
	if len(fields) > 1 {
		id, parseErr := parseMemberID(fields[1])
		if parseErr != nil {
			return d.sender.SendText(ctx, ev.SenderID, "Wrong member id.", nil)
		}
		target = id
	}

	if _, err := d.repo.UpdateMember(ctx, target, domain.MemberPatch{SubscriptionEnd: &end}); err != nil {
		return fmt.Errorf("set subscription for member %d: %w", target, err)
	}
	slog.Info("subscription override", "member_id", target, "operator_id", ev.SenderID, "end", subscription.FormatDate(end))

	return d.sender.SendText(ctx, ev.SenderID, fmt.Sprintf("Subscription for %d set until %s", target, subscription.FormatDate(end)), nil)
}

func (d *Dispatcher) handleStats(ctx context.Context, ev transport.Event) error {
	if !d.cfg.IsOperator(ev.SenderID) {
		return nil
	}

	records, err := d.repo.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("snapshot members: %w", err)
	}
	active := subscription.CountActive(records, d.today())
	return d.sender.SendText(ctx, ev.SenderID, statsText(len(records), active), nil)
}

func (d *Dispatcher) handleButton(ctx context.Context, ev transport.Event) error {
	if approval.IsDecision(ev.Action) {
		return d.handleDecision(ctx, ev)
	}

	switch ev.Action {
	case actionMenu:
		return d.sender.SendText(ctx, ev.SenderID, menuText, mainMenuKeyboard())
	case actionChannel:
		return d.sender.SendText(ctx, ev.SenderID, channelText(d.cfg), backKeyboard())
	case actionChat:
		return d.sender.SendText(ctx, ev.SenderID, chatText(d.cfg), backKeyboard())
	case actionSeasons:
		return d.sender.SendText(ctx, ev.SenderID, seasonsText(d.cfg), backKeyboard())
	case actionGift:
		return d.sender.SendText(ctx, ev.SenderID, giftText, backKeyboard())
	case actionArchive:
		return d.handleArchive(ctx, ev)
	case actionAccess:
		return d.handleAccess(ctx, ev)
	case actionPay:
		return d.handlePay(ctx, ev)
	case actionSupport:
		return d.handleSupport(ctx, ev)
	default:
		slog.Warn("unknown button action", "action", ev.Action, "sender_id", ev.SenderID)
		return nil
	}
}

func (d *Dispatcher) handleArchive(ctx context.Context, ev transport.Event) error {
	if len(d.cfg.ArchivePhotos) > 0 {
		if err := d.sender.SendAlbum(ctx, ev.SenderID, d.cfg.ArchivePhotos, d.cfg.ArchiveCaption); err != nil {
			return fmt.Errorf("send archive album: %w", err)
		}
	}
	keyboard := [][]transport.Button{
		{{Text: "📚 Open archive", URL: d.cfg.MaterialsLink}},
		{{Text: "‹ Back to menu", Action: actionMenu}},
	}
	return d.sender.SendText(ctx, ev.SenderID, archiveText, keyboard)
}

func (d *Dispatcher) handleAccess(ctx context.Context, ev transport.Event) error {
	record, err := d.repo.GetMember(ctx, ev.SenderID)
	if err != nil {
		return fmt.Errorf("read member %d: %w", ev.SenderID, err)
	}
	return d.sender.SendText(ctx, ev.SenderID, accessText(&record, d.today()), backKeyboard())
}

func (d *Dispatcher) handlePay(ctx context.Context, ev transport.Event) error {
	if err := d.machine.SetIntent(ctx, ev.SenderID, ev.Username, domain.IntentPaymentProof); err != nil {
		return err
	}
	return d.sender.SendText(ctx, ev.SenderID, payText(d.cfg), backKeyboard())
}

func (d *Dispatcher) handleSupport(ctx context.Context, ev transport.Event) error {
	if err := d.machine.SetIntent(ctx, ev.SenderID, ev.Username, domain.IntentSupportMessage); err != nil {
		return err
	}
	return d.sender.SendText(ctx, ev.SenderID, supportText, backKeyboard())
}

// handleDecision resolves an approve/reject button press from the
// operator channel. Outcomes are reported back to the pressing operator;
// only storage failures propagate.
func (d *Dispatcher) handleDecision(ctx context.Context, ev transport.Event) error {
	kind, memberID, err := approval.ParseDecision(ev.Action)
	if err != nil {
		slog.Warn("malformed decision action", "action", ev.Action, "sender_id", ev.SenderID, "error", err)
		return d.sender.SendText(ctx, ev.SenderID, "Data error: the decision action is broken.", nil)
	}

	switch kind {
	case approval.DecisionApprove:
		end, err := d.approvals.Approve(ctx, ev.SenderID, memberID)
		switch {
		case errors.Is(err, domain.ErrPermission):
			return d.sender.SendText(ctx, ev.SenderID, "Not enough rights.", nil)
		case errors.Is(err, domain.ErrAlreadyGranted):
			return d.sender.SendText(ctx, ev.SenderID, "Already activated earlier.", nil)
		case err != nil:
			return err
		}
		return d.sender.SendText(ctx, ev.SenderID, fmt.Sprintf("Access granted until %s.", subscription.FormatDate(end)), nil)
	case approval.DecisionReject:
		if err := d.approvals.Reject(ctx, ev.SenderID, memberID); err != nil {
			if errors.Is(err, domain.ErrPermission) {
				return d.sender.SendText(ctx, ev.SenderID, "Not enough rights.", nil)
			}
			return err
		}
		return d.sender.SendText(ctx, ev.SenderID, "Marked as not confirmed.", nil)
	default:
		return nil
	}
}

func parseMemberID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad member id %q", domain.ErrValidation, s)
	}
	return id, nil
}
