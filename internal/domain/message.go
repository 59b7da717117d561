package domain

// Message is a single chat entry. Messages are immutable once written;
// ordering is by Timestamp with the push-style ID as tiebreaker.
type Message struct {
	ID        string `bson:"_id" json:"id"`
	SessionID string `bson:"session_id" json:"-"`
	Text      string `bson:"text" json:"text"`
	IsBot     bool   `bson:"is_bot" json:"isBot"`
	IsAdmin   bool   `bson:"is_admin" json:"isAdmin"`
	AdminID   string `bson:"admin_id,omitempty" json:"adminId,omitempty"`
	Timestamp int64  `bson:"timestamp" json:"timestamp"`
	CreatedAt string `bson:"created_at" json:"createdAt"`
}

func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	cp := *m
	return &cp
}
