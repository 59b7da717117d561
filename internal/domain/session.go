package domain

import (
	"regexp"

	"github.com/fathima-sithara/support-chat/internal/crypto"
)

// Status is the lifecycle state of a chat session.
type Status string

const (
	StatusActive  Status = "active"
	StatusPending Status = "pending"
	StatusClosed  Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPending, StatusClosed:
		return true
	}
	return false
}

// Session ids are minted by the widget as custom_session_<epoch_ms>_<random>.
var sessionIDPattern = regexp.MustCompile(`^custom_session_\d+_[a-zA-Z0-9]+$`)

func ValidSessionID(id string) bool { return sessionIDPattern.MatchString(id) }

// Session is one end-user conversation thread. Timestamps are epoch
// milliseconds to stay wire-compatible with the widget.
type Session struct {
	SessionID    string          `bson:"_id" json:"sessionId"`
	CreatedAt    int64           `bson:"created_at" json:"createdAt"`
	LastActivity int64           `bson:"last_activity" json:"lastActivity"`
	Status       Status          `bson:"status" json:"status"`
	AdminReplied bool            `bson:"admin_replied" json:"adminReplied"`
	UserInfo     *SealedUserInfo `bson:"user_info,omitempty" json:"userInfo,omitempty"`
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.UserInfo != nil {
		ui := *s.UserInfo
		cp.UserInfo = &ui
	}
	return &cp
}

// UserInfo is the plaintext form of the request metadata captured when a
// session is created.
type UserInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	IP        string `json:"ip,omitempty"`
	Location  string `json:"location,omitempty"`
	Origin    string `json:"origin,omitempty"`
	URL       string `json:"url,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// SealedUserInfo is what actually goes to the store: userAgent, ip and
// location are kept only as AES-GCM triples, the rest passes through.
type SealedUserInfo struct {
	UserAgent *crypto.EncryptedField `bson:"user_agent,omitempty" json:"userAgent,omitempty"`
	IP        *crypto.EncryptedField `bson:"ip,omitempty" json:"ip,omitempty"`
	Location  *crypto.EncryptedField `bson:"location,omitempty" json:"location,omitempty"`
	Origin    string                 `bson:"origin,omitempty" json:"origin,omitempty"`
	URL       string                 `bson:"url,omitempty" json:"url,omitempty"`
	Timestamp int64                  `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}
