package storage

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Mongo document shapes. Users and conversations are owned by the CRUD
// layer; the gateway only reads them and patches single fields.

type messageDoc struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	ConversationID string             `bson:"conversation_id"`
	SenderID       string             `bson:"sender_id"`
	Text           string             `bson:"text"`
	ReadBy         []string           `bson:"read_by"`
	CreatedAt      time.Time          `bson:"created_at"`
}

type conversationDoc struct {
	ConversationID string    `bson:"conversation_id"`
	Members        []string  `bson:"members"`
	LastMessageAt  time.Time `bson:"last_message_at"`
}

type userDoc struct {
	UserID      string    `bson:"user_id"`
	Username    string    `bson:"username"`
	DisplayName string    `bson:"display_name"`
	AvatarURL   string    `bson:"avatar_url,omitempty"`
	LastSeen    time.Time `bson:"last_seen"`
}
