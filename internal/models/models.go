package models

import (
	"time"
)

// ContractStatus is the lifecycle state of a contract
type ContractStatus string

const (
	ContractDraft          ContractStatus = "draft"
	ContractSentForSigning ContractStatus = "sent_for_signing"
	ContractSigned         ContractStatus = "signed"
	ContractCancelled      ContractStatus = "cancelled"
)

// Terminal reports whether no further transition can leave this status
func (s ContractStatus) Terminal() bool {
	return s == ContractSigned || s == ContractCancelled
}

// SigneeStatus is the per-contract signing state of one binding
type SigneeStatus string

const (
	SigneeNotSent SigneeStatus = "not_sent"
	SigneePending SigneeStatus = "pending"
	SigneeSigned  SigneeStatus = "signed"
)

// SignatureType describes the form a submitted signature took
type SignatureType string

const (
	SignatureText  SignatureType = "text"
	SignatureSVG   SignatureType = "svg"
	SignatureImage SignatureType = "image"
)

// Account is the top-level tenant; it owns users, clients, folders and contracts
type Account struct {
	ID                    string     `db:"id" json:"id"`
	Name                  string     `db:"name" json:"name"`
	SubscriptionExpiresAt *time.Time `db:"subscription_expires_at" json:"subscriptionExpiresAt,omitempty"`
	DeletionScheduledAt   *time.Time `db:"deletion_scheduled_at" json:"deletionScheduledAt,omitempty"`
	DeactivatedAt         *time.Time `db:"deactivated_at" json:"deactivatedAt,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updatedAt"`
}

// User is a person who can log in under an account
type User struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"accountId"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	IsPrimary bool      `db:"is_primary" json:"isPrimary"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Client is a counterparty entity that owns signees and is attached to
// contracts. Exactly one client per account has IsAccountClient=true; it
// represents the account's own organization and its signees are implicitly
// attached to every contract. PriorityRequired switches the signing
// sequencer between parallel fan-out and strict sequence for that client's
// signees.
type Client struct {
	ID               string    `db:"id" json:"id"`
	AccountID        string    `db:"account_id" json:"accountId"`
	Name             string    `db:"name" json:"name"`
	PriorityRequired bool      `db:"priority_required" json:"priorityRequired"`
	IsAccountClient  bool      `db:"is_account_client" json:"isAccountClient"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// Folder groups contracts inside an account
type Folder struct {
	ID        string    `db:"id" json:"id"`
	AccountID string    `db:"account_id" json:"accountId"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Signee is a natural person authorized to sign on behalf of a client.
// SigningSequence orders the client's signees when the client requires
// priority signing; nil means the signee takes no part in that ordering.
type Signee struct {
	ID              string    `db:"id" json:"id"`
	AccountID       string    `db:"account_id" json:"accountId"`
	ClientID        string    `db:"client_id" json:"clientId"`
	Name            string    `db:"name" json:"name"`
	Email           string    `db:"email" json:"email"`
	SigningSequence *int      `db:"signing_sequence" json:"signingSequence,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time `db:"updated_at" json:"updatedAt"`
}

// Contract is the document under signature. Content is the editable draft
// body; SignedContent is the body signees append their signature marks to
// and is what gets finalized.
type Contract struct {
	ID            string         `db:"id" json:"id"`
	AccountID     string         `db:"account_id" json:"accountId"`
	ClientID      string         `db:"client_id" json:"clientId"`
	FolderID      string         `db:"folder_id" json:"folderId"`
	Title         string         `db:"title" json:"title"`
	Content       string         `db:"content" json:"content"`
	SignedContent string         `db:"signed_content" json:"signedContent"`
	Status        ContractStatus `db:"status" json:"status"`
	CreatedBy     string         `db:"created_by" json:"createdBy"`
	CreatedAt     time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updatedAt"`
}

// ContractSignee binds one signee to one contract. Name and email are
// snapshots taken at attach time so later signee edits never alter an
// in-flight contract; SigneePriority is likewise copied from
// Signee.SigningSequence once and never tracks later edits. Position is the
// insertion order within the contract and breaks priority ties
// (first inserted wins).
type ContractSignee struct {
	ID              string        `db:"id" json:"id"`
	ContractID      string        `db:"contract_id" json:"contractId"`
	SigneeID        string        `db:"signee_id" json:"signeeId"`
	Name            string        `db:"name" json:"name"`
	Email           string        `db:"email" json:"email"`
	IsAccountSignee bool          `db:"is_account_signee" json:"isAccountSignee"`
	Status          SigneeStatus  `db:"status" json:"status"`
	SigneePriority  *int          `db:"signee_priority" json:"signeePriority,omitempty"`
	Position        int           `db:"position" json:"position"`
	Signature       string        `db:"signature" json:"-"`
	SignatureType   SignatureType `db:"signature_type" json:"signatureType,omitempty"`
	SignatureKey    string        `db:"signature_key" json:"-"`
	SignedAt        *int64        `db:"signed_at" json:"signedAt,omitempty"` // unix seconds
	SignedIP        string        `db:"signed_ip" json:"-"`
	CreatedAt       time.Time     `db:"created_at" json:"createdAt"`

	// SignatureURL is a short-lived presigned link to the stored signature
	// image; populated on reads, never persisted.
	SignatureURL string `db:"-" json:"signatureUrl,omitempty"`
}

// ContractLog is one audit entry for a contract action
type ContractLog struct {
	ID          string    `db:"id" json:"id"`
	ContractID  string    `db:"contract_id" json:"contractId"`
	ActorName   string    `db:"actor_name" json:"actorName"`
	Description string    `db:"description" json:"description"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// IsEditable reports whether the contract body and signee set may still be
// changed: nobody has signed yet and the contract is not in a terminal state.
func (c *Contract) IsEditable(signedCount int) bool {
	if signedCount > 0 {
		return false
	}
	return c.Status == ContractDraft || c.Status == ContractSentForSigning
}
