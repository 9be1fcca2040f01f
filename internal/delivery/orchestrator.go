// Package delivery turns a stored campaign into sent messages: it validates
// personalization, enforces the daily quota, fans out per the campaign's send
// mode, and records per-recipient and per-campaign outcomes.
package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dmitrymomot/campaigner/internal/gmail"
	"github.com/dmitrymomot/campaigner/internal/mailbox"
	"github.com/dmitrymomot/campaigner/internal/metrics"
	"github.com/dmitrymomot/campaigner/internal/models"
	"github.com/dmitrymomot/campaigner/pkg/placeholder"
)

// CampaignStore is the slice of campaign persistence the orchestrator needs.
type CampaignStore interface {
	GetOwned(ctx context.Context, id, userID primitive.ObjectID) (*models.Campaign, error)
	SetStatus(ctx context.Context, id primitive.ObjectID, status models.CampaignStatus) error
	SetRecipientStatus(ctx context.Context, campaignID primitive.ObjectID, recipientID string, status models.RecipientStatus, lastError string) error
	MarkRecipientsSent(ctx context.Context, campaignID primitive.ObjectID, recipientIDs []string) error
}

// VariableStore lists the user's personalization variable definitions.
type VariableStore interface {
	ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Variable, error)
}

// SendLogStore appends quota-accounting entries.
type SendLogStore interface {
	Append(ctx context.Context, userID primitive.ObjectID, sentAt time.Time) error
}

// Orchestrator drives campaign delivery end to end.
type Orchestrator struct {
	campaigns CampaignStore
	variables VariableStore
	sendLog   SendLogStore
	mailboxes *mailbox.Manager
	quota     *Quota
	log       *slog.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	campaigns CampaignStore,
	variables VariableStore,
	sendLog SendLogStore,
	mailboxes *mailbox.Manager,
	quota *Quota,
	log *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		campaigns: campaigns,
		variables: variables,
		sendLog:   sendLog,
		mailboxes: mailboxes,
		quota:     quota,
		log:       log,
	}
}

// Result aggregates one delivery attempt.
type Result struct {
	Status    models.CampaignStatus `json:"status"`
	Sent      int                   `json:"sent"`
	Failed    int                   `json:"failed"`
	LastError string                `json:"last_error,omitempty"`
}

// Send delivers the pending recipients of a campaign through the owner's
// mailbox. Re-invoking a fully-sent campaign is a no-op; a partially-sent
// campaign is resumed, touching only recipients still pending.
//
// Single mode is all-or-nothing: one message addressed to every pending
// recipient, and a failure fails the batch. Individual mode personalizes and
// sends per recipient, serially in stored order; one recipient's failure
// never aborts the rest. Authorization-fatal provider errors invalidate the
// credential and surface mailbox.ErrAuthExpired.
func (o *Orchestrator) Send(ctx context.Context, campaignID, userID primitive.ObjectID) (*Result, error) {
	c, err := o.campaigns.GetOwned(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	handle, err := o.mailboxes.AuthorizedAccess(ctx, userID)
	if err != nil {
		return nil, o.fail(ctx, c, err)
	}
	defer handle.PersistRefreshed(ctx)

	pending := c.PendingRecipients()
	if len(pending) == 0 {
		// Fully sent already. Settle the status so a claimed campaign is
		// not left in sending.
		if err := o.campaigns.SetStatus(ctx, c.ID, models.CampaignSent); err != nil {
			return nil, err
		}
		return &Result{Status: models.CampaignSent}, nil
	}

	if err := o.validate(ctx, c, pending); err != nil {
		return nil, o.fail(ctx, c, err)
	}

	if err := o.quota.Check(ctx, userID, len(pending)); err != nil {
		return nil, o.fail(ctx, c, err)
	}

	identity, err := o.mailboxes.ResolveSenderIdentity(ctx, handle, c.SenderName)
	if err != nil {
		return nil, o.fail(ctx, c, o.classify(ctx, userID, err))
	}

	if err := o.campaigns.SetStatus(ctx, c.ID, models.CampaignSending); err != nil {
		return nil, err
	}

	var result *Result
	switch c.SendMode {
	case models.SendModeSingle:
		result, err = o.sendSingle(ctx, c, pending, handle, identity)
	default:
		result, err = o.sendIndividual(ctx, c, pending, handle, identity)
	}
	if err != nil {
		return nil, o.fail(ctx, c, err)
	}

	o.log.Info("campaign delivered",
		slog.String("campaign_id", c.ID.Hex()),
		slog.String("user_id", userID.Hex()),
		slog.String("mode", string(c.SendMode)),
		slog.Int("sent", result.Sent),
		slog.Int("failed", result.Failed))
	return result, nil
}

// sendSingle sends one message addressed to every pending recipient,
// personalized with the first recipient's variables. All-or-nothing.
func (o *Orchestrator) sendSingle(ctx context.Context, c *models.Campaign, pending []models.Recipient, handle *mailbox.AccessHandle, identity *mailbox.ResolvedIdentity) (*Result, error) {
	addresses := make([]string, len(pending))
	ids := make([]string, len(pending))
	for i, r := range pending {
		addresses[i] = r.Email
		ids[i] = r.ID
	}

	data := renderData(pending[0])
	msg := gmail.Message{
		To:          addresses,
		FromName:    identity.DisplayName,
		FromAddress: identity.Address,
		Subject:     placeholder.Render(c.Subject, data),
		HTML:        placeholder.Render(c.BodyHTML, data),
	}

	if _, err := handle.SendMessage(ctx, msg); err != nil {
		metrics.MessagesFailed.Add(float64(len(pending)))
		metrics.CampaignsCompleted.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, o.classify(ctx, c.UserID, err)
	}

	if err := o.campaigns.MarkRecipientsSent(ctx, c.ID, ids); err != nil {
		return nil, err
	}
	o.appendSendLog(ctx, c.UserID, len(pending))

	if err := o.campaigns.SetStatus(ctx, c.ID, models.CampaignSent); err != nil {
		return nil, err
	}
	metrics.MessagesSent.Add(float64(len(pending)))
	metrics.CampaignsCompleted.WithLabelValues(metrics.OutcomeSent).Inc()
	return &Result{Status: models.CampaignSent, Sent: len(pending)}, nil
}

// sendIndividual sends one personalized message per pending recipient,
// serially in stored order. Failed recipients are recorded and skipped;
// auth-fatal errors abort the batch after invalidating the credential, so
// the already-sent subset stays marked and a retry resumes the remainder.
func (o *Orchestrator) sendIndividual(ctx context.Context, c *models.Campaign, pending []models.Recipient, handle *mailbox.AccessHandle, identity *mailbox.ResolvedIdentity) (*Result, error) {
	var sent, failed int
	var lastErr error

	for _, r := range pending {
		data := renderData(r)
		msg := gmail.Message{
			To:          []string{r.Email},
			FromName:    identity.DisplayName,
			FromAddress: identity.Address,
			Subject:     placeholder.Render(c.Subject, data),
			HTML:        placeholder.Render(c.BodyHTML, data),
		}

		if _, err := handle.SendMessage(ctx, msg); err != nil {
			if gmail.IsAuthFatal(err) {
				// Do not mark the recipient failed: the message was
				// rejected for credentials, not content. The pending
				// remainder survives for a retry after re-authorization.
				return nil, o.classify(ctx, c.UserID, err)
			}
			failed++
			lastErr = err
			metrics.MessagesFailed.Inc()
			if markErr := o.campaigns.SetRecipientStatus(ctx, c.ID, r.ID, models.RecipientFailed, err.Error()); markErr != nil {
				o.log.Error("failed to record recipient failure",
					slog.String("campaign_id", c.ID.Hex()),
					slog.String("recipient_id", r.ID),
					slog.Any("error", markErr))
			}
			continue
		}

		if err := o.campaigns.SetRecipientStatus(ctx, c.ID, r.ID, models.RecipientSent, ""); err != nil {
			return nil, err
		}
		o.appendSendLog(ctx, c.UserID, 1)
		sent++
		metrics.MessagesSent.Inc()
	}

	if sent == 0 && failed > 0 {
		metrics.CampaignsCompleted.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, errors.Join(ErrDeliveryFailed, lastErr)
	}

	if err := o.campaigns.SetStatus(ctx, c.ID, models.CampaignSent); err != nil {
		return nil, err
	}

	result := &Result{Status: models.CampaignSent, Sent: sent, Failed: failed}
	if lastErr != nil {
		result.LastError = lastErr.Error()
		metrics.CampaignsCompleted.WithLabelValues(metrics.OutcomePartial).Inc()
	} else {
		metrics.CampaignsCompleted.WithLabelValues(metrics.OutcomeSent).Inc()
	}
	return result, nil
}

// PreviewResult is a rendered campaign against its first recipient.
type PreviewResult struct {
	Subject  string   `json:"subject"`
	BodyHTML string   `json:"body_html"`
	Warnings []string `json:"warnings,omitempty"`
}

// Preview renders the campaign's subject and body against the first
// recipient without sending anything. Unknown placeholder keys are reported
// as warnings; unmatched delimiters fail with ErrValidation.
func (o *Orchestrator) Preview(ctx context.Context, campaignID, userID primitive.ObjectID) (*PreviewResult, error) {
	c, err := o.campaigns.GetOwned(ctx, campaignID, userID)
	if err != nil {
		return nil, err
	}

	allowed, err := o.allowedKeys(ctx, userID)
	if err != nil {
		return nil, err
	}

	var warnings []string
	for _, text := range []string{c.Subject, c.BodyHTML} {
		res := placeholder.Validate(text, allowed)
		if res.UnmatchedDelimiters {
			return nil, fmt.Errorf("%w: unmatched placeholder delimiters", ErrValidation)
		}
		for _, key := range res.UnknownKeys {
			warnings = append(warnings, "unknown placeholder {{"+key+"}}")
		}
	}

	data := map[string]string{}
	if len(c.Recipients) > 0 {
		data = renderData(c.Recipients[0])
	}

	return &PreviewResult{
		Subject:  placeholder.Render(c.Subject, data),
		BodyHTML: placeholder.Render(c.BodyHTML, data),
		Warnings: warnings,
	}, nil
}

// validate rejects malformed or unresolvable personalization before any
// provider call: unmatched delimiters, unknown keys, and, in individual
// mode, a required variable missing for any pending recipient.
func (o *Orchestrator) validate(ctx context.Context, c *models.Campaign, pending []models.Recipient) error {
	allowed, err := o.allowedKeys(ctx, c.UserID)
	if err != nil {
		return err
	}

	used := make(map[string]struct{})
	for _, text := range []string{c.Subject, c.BodyHTML} {
		res := placeholder.Validate(text, allowed)
		if res.UnmatchedDelimiters {
			return fmt.Errorf("%w: unmatched placeholder delimiters", ErrValidation)
		}
		if len(res.UnknownKeys) > 0 {
			return fmt.Errorf("%w: unknown placeholder keys: %s",
				ErrValidation, strings.Join(res.UnknownKeys, ", "))
		}
		for _, key := range placeholder.Extract(text) {
			used[key] = struct{}{}
		}
	}

	if c.SendMode != models.SendModeIndividual {
		return nil
	}

	defs, err := o.variables.ListByUser(ctx, c.UserID)
	if err != nil {
		return err
	}
	for _, def := range defs {
		if !def.Required {
			continue
		}
		if _, ok := used[def.Key]; !ok {
			continue
		}
		for _, r := range pending {
			if r.Variables[def.Key] == "" {
				return fmt.Errorf("%w: recipient %s missing required variable %q",
					ErrValidation, r.Email, def.Key)
			}
		}
	}
	return nil
}

func (o *Orchestrator) allowedKeys(ctx context.Context, userID primitive.ObjectID) ([]string, error) {
	defs, err := o.variables.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(defs)+1)
	keys = append(keys, placeholder.NameKey)
	for _, def := range defs {
		keys = append(keys, def.Key)
	}
	return keys, nil
}

// classify converts authorization-fatal provider errors into ErrAuthExpired
// after invalidating the stored credential. Everything else passes through
// untouched.
func (o *Orchestrator) classify(ctx context.Context, userID primitive.ObjectID, err error) error {
	if !gmail.IsAuthFatal(err) {
		return err
	}
	kind := gmail.ClassifyAuthError(err)
	if invErr := o.mailboxes.Invalidate(ctx, userID, "send failed: "+kind.String()); invErr != nil {
		o.log.Error("failed to invalidate credential",
			slog.String("user_id", userID.Hex()),
			slog.Any("error", invErr))
	}
	metrics.AuthInvalidations.Inc()
	return errors.Join(mailbox.ErrAuthExpired, err)
}

// fail settles a claimed campaign back to draft before surfacing the error,
// so a scheduler pickup never strands it in sending.
func (o *Orchestrator) fail(ctx context.Context, c *models.Campaign, err error) error {
	if setErr := o.campaigns.SetStatus(ctx, c.ID, models.CampaignDraft); setErr != nil {
		o.log.Error("failed to revert campaign to draft",
			slog.String("campaign_id", c.ID.Hex()),
			slog.Any("error", setErr))
	}
	return err
}

// appendSendLog records n quota entries; accounting failures are logged, not
// fatal, because the messages already went out.
func (o *Orchestrator) appendSendLog(ctx context.Context, userID primitive.ObjectID, n int) {
	now := time.Now().UTC()
	for i := 0; i < n; i++ {
		if err := o.sendLog.Append(ctx, userID, now); err != nil {
			o.log.Error("failed to append send log entry",
				slog.String("user_id", userID.Hex()),
				slog.Any("error", err))
		}
	}
}

// renderData builds the personalization map for a recipient: its variables
// plus the built-in name key.
func renderData(r models.Recipient) map[string]string {
	data := make(map[string]string, len(r.Variables)+1)
	for k, v := range r.Variables {
		data[k] = v
	}
	data[placeholder.NameKey] = r.Name
	return data
}
