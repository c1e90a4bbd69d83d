package storage

import (
	"context"
	"time"
)

// SenderProfile is the populated sender carried inside a broadcast message
// record, so clients can render without a second lookup.
type SenderProfile struct {
	ID          string `json:"id" bson:"user_id"`
	Username    string `json:"username" bson:"username"`
	DisplayName string `json:"displayName" bson:"display_name"`
	AvatarURL   string `json:"avatarUrl,omitempty" bson:"avatar_url,omitempty"`
}

// MessageRecord is the canonical, storage-assigned version of a message.
// It is the broadcast payload; clients never see their raw input echoed.
type MessageRecord struct {
	ID             string        `json:"id"`
	ConversationID string        `json:"conversationId"`
	Sender         SenderProfile `json:"sender"`
	Text           string        `json:"text"`
	ReadBy         []string      `json:"readBy"`
	CreatedAt      time.Time     `json:"createdAt"`
}

// Gateway is the contract to the durable store. AppendMessage and
// TouchConversation sit on the send critical path and their failures
// suppress the broadcast; SetUserLastSeen is best-effort on disconnect.
type Gateway interface {
	// AppendMessage persists a message with the sender pre-seeded into the
	// read set (self-read-on-send) and returns the canonical record.
	AppendMessage(ctx context.Context, conversationID, senderID, text string) (*MessageRecord, error)

	// TouchConversation bumps the conversation's last-activity timestamp.
	TouchConversation(ctx context.Context, conversationID string, at time.Time) error

	// MarkMessageRead adds the user to the message's read set.
	MarkMessageRead(ctx context.Context, conversationID, messageID, userID string) error

	// SetUserLastSeen records the user's last-seen timestamp.
	SetUserLastSeen(ctx context.Context, userID string, at time.Time) error

	// IsConversationMember reports whether the user is a listed member.
	// A conversation with no persisted record admits everyone.
	IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error)
}
