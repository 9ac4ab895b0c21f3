package models

const (
	ActivityTypeMessage = "message"
	RoleBot             = "bot"
	RoleUser            = "user"
)

// ConversationSession is the per-browser-session state held against the bot
// service. The watermark is the number of activities the client has fully
// consumed; it only ever advances.
type ConversationSession struct {
	ConversationID string `json:"conversation_id"`
	Token          string `json:"token"`
	Watermark      int    `json:"watermark"`
}

// Activity is one item in a conversation's ordered, append-only stream.
type Activity struct {
	ID        string       `json:"id,omitempty"`
	Type      string       `json:"type"`
	From      ActivityFrom `json:"from"`
	ReplyToID string       `json:"replyToId,omitempty"`
	Text      string       `json:"text,omitempty"`
	Timestamp string       `json:"timestamp,omitempty"`
}

type ActivityFrom struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}
