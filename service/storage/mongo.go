package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"mchat/tools/errs"
)

const (
	collMessages      = "messages"
	collConversations = "conversations"
	collUsers         = "users"
)

// MongoConfig mirrors the knobs the deployment actually sets.
type MongoConfig struct {
	URI         string
	Database    string
	Username    string
	Password    string
	MaxPoolSize int
	MaxRetry    int
}

// MongoStore implements Gateway on top of the document store the rest of
// the product uses (users/conversations/messages collections).
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.URI == "" {
		return nil, errs.New("mongo uri is required")
	}
	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(uint64(cfg.MaxPoolSize))
	}
	if cfg.Username != "" {
		opts.SetAuth(options.Credential{Username: cfg.Username, Password: cfg.Password})
	}
	if cfg.MaxRetry <= 0 {
		cfg.MaxRetry = 3
	}

	var (
		cli *mongo.Client
		err error
	)
	for i := 0; i < cfg.MaxRetry; i++ {
		cli, err = connect(ctx, opts)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(ctx.Err())
		case <-time.After(time.Second / 2):
		}
	}
	if err != nil {
		return nil, errs.WrapMsg(err, "failed to connect to MongoDB")
	}
	return &MongoStore{db: cli.Database(cfg.Database)}, nil
}

func connect(ctx context.Context, opts *options.ClientOptions) (*mongo.Client, error) {
	cli, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	if err := cli.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return cli, nil
}

func (s *MongoStore) AppendMessage(ctx context.Context, conversationID, senderID, text string) (*MessageRecord, error) {
	doc := messageDoc{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Text:           text,
		ReadBy:         []string{senderID}, // self-read-on-send
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := s.db.Collection(collMessages).InsertOne(ctx, doc); err != nil {
		return nil, errs.ErrStorage.WrapMsg("append message: " + err.Error())
	}

	return &MessageRecord{
		ID:             doc.ID.Hex(),
		ConversationID: doc.ConversationID,
		Sender:         s.senderProfile(ctx, senderID),
		Text:           doc.Text,
		ReadBy:         doc.ReadBy,
		CreatedAt:      doc.CreatedAt,
	}, nil
}

// senderProfile populates the sender from the users collection. A missing
// or unreadable profile degrades to the bare identity.
func (s *MongoStore) senderProfile(ctx context.Context, userID string) SenderProfile {
	var u userDoc
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"user_id": userID}).Decode(&u)
	if err != nil {
		return SenderProfile{ID: userID}
	}
	return SenderProfile{
		ID:          u.UserID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}

func (s *MongoStore) TouchConversation(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.db.Collection(collConversations).UpdateOne(ctx,
		bson.M{"conversation_id": conversationID},
		bson.M{"$set": bson.M{"last_message_at": at.UTC()}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return errs.ErrStorage.WrapMsg("touch conversation: " + err.Error())
	}
	return nil
}

func (s *MongoStore) MarkMessageRead(ctx context.Context, conversationID, messageID, userID string) error {
	oid, err := primitive.ObjectIDFromHex(messageID)
	if err != nil {
		return errs.ErrStorage.WrapMsg("bad message id: " + messageID)
	}
	res, err := s.db.Collection(collMessages).UpdateOne(ctx,
		bson.M{"_id": oid, "conversation_id": conversationID},
		bson.M{"$addToSet": bson.M{"read_by": userID}},
	)
	if err != nil {
		return errs.ErrStorage.WrapMsg("mark read: " + err.Error())
	}
	if res.MatchedCount == 0 {
		return errs.ErrStorage.WrapMsg("message not found: " + messageID)
	}
	return nil
}

func (s *MongoStore) SetUserLastSeen(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"last_seen": at.UTC()}},
	)
	if err != nil {
		return errs.ErrStorage.WrapMsg("set last seen: " + err.Error())
	}
	return nil
}

func (s *MongoStore) IsConversationMember(ctx context.Context, conversationID, userID string) (bool, error) {
	var conv conversationDoc
	err := s.db.Collection(collConversations).
		FindOne(ctx, bson.M{"conversation_id": conversationID}).Decode(&conv)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// rooms may exist before their first persisted message
		return true, nil
	}
	if err != nil {
		return false, errs.ErrStorage.WrapMsg("load conversation: " + err.Error())
	}
	for _, m := range conv.Members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}
