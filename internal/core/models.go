package core

import (
	"time"
)

const PlatformBluesky = "bluesky"

// Action is the classification of a candidate post.
type Action string

const (
	ActionReply   Action = "reply"
	ActionReshare Action = "reshare"
	ActionIgnore  Action = "ignore"
)

// ReplyStyle distinguishes how a reply is drafted.
type ReplyStyle string

const (
	StyleCTA    ReplyStyle = "cta"
	StyleCasual ReplyStyle = "casual"
)

// CandidatePost is a fetched post that has not been evaluated yet.
// Immutable once fetched.
type CandidatePost struct {
	ID              string
	CID             string
	Text            string
	AuthorDID       string
	AuthorHandle    string
	AuthorFollowers int
	Likes           int
	Shares          int
	IsReply         bool
	CreatedAt       time.Time
	Platform        string
}

// AuthorProfile is the slice of a platform profile the pipeline needs:
// identity for own-post guards, followers for the quality filter.
type AuthorProfile struct {
	DID       string
	Handle    string
	Followers int
}

// Decision is the outcome of the decision engine for one candidate.
// It is ephemeral: it only survives as a response log entry or a
// pending approval.
type Decision struct {
	PostID    string
	Action    Action
	Style     ReplyStyle
	Draft     string
	Sentiment string
	Reason    string
	Score     int
	DecidedAt time.Time
}

// SeenPost marks a post as processed. Write-once per (post_id, platform).
type SeenPost struct {
	PostID       string `gorm:"primaryKey"`
	Platform     string `gorm:"primaryKey"`
	AuthorHandle string
	Responded    bool
	SeenAt       time.Time
}

func (SeenPost) TableName() string {
	return "seen_posts"
}

// ResponseLogEntry records one executed engagement action. Append-only.
type ResponseLogEntry struct {
	ID           uint `gorm:"primaryKey"`
	PostID       string
	Platform     string
	AuthorHandle string
	Action       Action
	Sentiment    string
	ResponseText string
	PostedAt     time.Time
}

func (ResponseLogEntry) TableName() string {
	return "response_log"
}

// ApprovalStatus is the lifecycle state of a pending approval.
type ApprovalStatus string

const (
	StatusPending  ApprovalStatus = "pending"
	StatusApproved ApprovalStatus = "approved"
	StatusRejected ApprovalStatus = "rejected"
	StatusExpired  ApprovalStatus = "expired"
)

// Terminal reports whether no further transition is legal.
func (s ApprovalStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusExpired
}

// CanTransition reports whether s -> next is a legal transition.
// The only legal transitions are pending -> {approved, rejected, expired}.
func (s ApprovalStatus) CanTransition(next ApprovalStatus) bool {
	return s == StatusPending && next.Terminal()
}

// PendingApproval is a decision parked until a remote party resolves it.
// Owned exclusively by the approval workflow; resolved at most once.
type PendingApproval struct {
	Token        string `gorm:"primaryKey"`
	PostID       string
	PostCID      string
	Platform     string
	AuthorHandle string
	PostText     string
	Action       Action
	Style        ReplyStyle
	ReplyText    string
	Sentiment    string
	Reason       string
	Score        int
	Status       ApprovalStatus
	CreatedAt    time.Time
	ResolvedAt   *time.Time
}

func (PendingApproval) TableName() string {
	return "pending_approvals"
}

// Resolution is the verified payload of one approval callback, as
// forwarded from the callback server to the executor.
type Resolution struct {
	Token      string    `json:"token"`
	Choice     string    `json:"choice"` // "approve" or "reject"
	MessageTS  string    `json:"message_ts,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

// Stats summarizes engagement activity for one platform.
type Stats struct {
	TotalSeen      int64
	TotalResponses int64
	ResponsesToday int64
	LastHour       int64
	PendingCount   int64
}
