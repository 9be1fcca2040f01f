// Package models defines the persisted document types shared by the store,
// the delivery pipeline, and the HTTP surface.
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CampaignStatus is the campaign lifecycle state.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	// CampaignSending marks a campaign claimed by a scheduler tick or an
	// in-flight immediate send, so no second tick can pick it up.
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
)

// SendMode selects the fan-out strategy.
type SendMode string

const (
	// SendModeSingle sends one message addressed to every pending recipient
	// at once. It either goes out once or not at all.
	SendModeSingle SendMode = "single"
	// SendModeIndividual sends one independently personalized message per
	// recipient; each recipient fails independently.
	SendModeIndividual SendMode = "individual"
)

// RecipientStatus tracks per-recipient delivery. Sent is terminal; failed
// recipients are retried by the next send of the same campaign.
type RecipientStatus string

const (
	RecipientPending RecipientStatus = "pending"
	RecipientSent    RecipientStatus = "sent"
	RecipientFailed  RecipientStatus = "failed"
)

// User is an account record. Mailbox authorization state lives here: the
// encrypted long-lived credential, the transient handshake state token, and
// the cached sender identity.
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Subject           string             `bson:"subject" json:"-"`
	Email             string             `bson:"email" json:"email"`
	DisplayName       string             `bson:"display_name" json:"display_name"`
	SenderDisplayName string             `bson:"sender_display_name,omitempty" json:"sender_display_name,omitempty"`

	MailboxEmail          string          `bson:"mailbox_email,omitempty" json:"mailbox_email,omitempty"`
	MailboxConnected      bool            `bson:"mailbox_connected" json:"mailbox_connected"`
	EncryptedRefreshToken string          `bson:"encrypted_refresh_token,omitempty" json:"-"`
	AuthState             string          `bson:"auth_state,omitempty" json:"-"`
	AuthStateExpiresAt    *time.Time      `bson:"auth_state_expires_at,omitempty" json:"-"`
	SenderIdentity        *SenderIdentity `bson:"sender_identity,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Connected reports whether the user holds a mailbox credential. The stored
// MailboxConnected flag is a denormalized fast-read copy; credential presence
// is the source of truth.
func (u *User) Connected() bool {
	return u.EncryptedRefreshToken != ""
}

// SenderIdentity is the cached "send-as" identity of a mailbox. It is a soft
// cache: safe to recompute at any time, never a correctness dependency.
type SenderIdentity struct {
	Address     string    `bson:"address" json:"address"`
	DisplayName string    `bson:"display_name,omitempty" json:"display_name,omitempty"`
	FetchedAt   time.Time `bson:"fetched_at" json:"fetched_at"`
}

// Recipient is embedded in a Campaign. Rows are addressed by their stable ID,
// not by array position.
type Recipient struct {
	ID        string            `bson:"id" json:"id"`
	Email     string            `bson:"email" json:"email"`
	Name      string            `bson:"name" json:"name"`
	Variables map[string]string `bson:"variables,omitempty" json:"variables,omitempty"`
	Status    RecipientStatus   `bson:"status" json:"status"`
	LastError string            `bson:"last_error,omitempty" json:"last_error,omitempty"`
}

// Campaign is a composed message plus its recipient list, schedule, and
// lifecycle status. Owned by exactly one user.
type Campaign struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"-"`
	Subject     string             `bson:"subject" json:"subject"`
	BodyHTML    string             `bson:"body_html" json:"body_html"`
	SenderName  string             `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	SendMode    SendMode           `bson:"send_mode" json:"send_mode"`
	Recipients  []Recipient        `bson:"recipients" json:"recipients"`
	ScheduledAt *time.Time         `bson:"scheduled_at,omitempty" json:"scheduled_at,omitempty"`
	Status      CampaignStatus     `bson:"status" json:"status"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// PendingRecipients returns the recipients still awaiting delivery, in
// stored list order. Previously failed recipients count as awaiting: a
// re-send retries them while leaving sent recipients untouched.
func (c *Campaign) PendingRecipients() []Recipient {
	var pending []Recipient
	for _, r := range c.Recipients {
		if r.Status != RecipientSent {
			pending = append(pending, r)
		}
	}
	return pending
}

// Variable is a user-defined personalization key. Keys are lowercase
// alphanumeric and unique per user.
type Variable struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID      primitive.ObjectID `bson:"user_id" json:"-"`
	Key         string             `bson:"key" json:"key"`
	Label       string             `bson:"label" json:"label"`
	Required    bool               `bson:"required" json:"required"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// GroupRecipient is a saved recipient row inside a Group. Unlike campaign
// recipients it carries no delivery state; a group is source material for
// campaigns, not a delivery target itself.
type GroupRecipient struct {
	Email     string            `bson:"email" json:"email"`
	Name      string            `bson:"name" json:"name"`
	Variables map[string]string `bson:"variables,omitempty" json:"variables,omitempty"`
}

// Group is a named, reusable recipient list. Emails are unique within a
// group.
type Group struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID     primitive.ObjectID `bson:"user_id" json:"-"`
	Title      string             `bson:"title" json:"title"`
	Recipients []GroupRecipient   `bson:"recipients" json:"recipients"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}

// Template is a saved subject/body pair a user can start new campaigns from.
type Template struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID `bson:"user_id" json:"-"`
	Title     string             `bson:"title" json:"title"`
	Subject   string             `bson:"subject" json:"subject"`
	BodyHTML  string             `bson:"body_html" json:"body_html"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// SendLog records one successfully sent message. Append-only; entries are
// only ever counted, never updated.
type SendLog struct {
	ID     primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID primitive.ObjectID `bson:"user_id" json:"-"`
	SentAt time.Time          `bson:"sent_at" json:"sent_at"`
}
