package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/domain"
)

const (
	sessionsChannel       = "chat:sessions"
	messagesChannelPrefix = "chat:messages:"
)

// Mongo persists sessions and messages in two collections and fans realtime
// snapshots out through Redis pub/sub, so subscribers on any process see
// every change.
type Mongo struct {
	sessions *mongo.Collection
	messages *mongo.Collection
	rdb      *redis.Client
	ids      *domain.PushIDGenerator
	log      *zap.Logger
}

func NewMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return client, nil
}

func NewMongo(db *mongo.Database, rdb *redis.Client, log *zap.Logger) *Mongo {
	sessions := db.Collection("chatSessions")
	messages := db.Collection("chatMessages")

	_, _ = sessions.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "last_activity", Value: -1}},
		Options: options.Index().SetName("last_activity_idx"),
	})
	_, _ = messages.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}},
		Options: options.Index().SetName("session_timestamp_idx"),
	})

	return &Mongo{
		sessions: sessions,
		messages: messages,
		rdb:      rdb,
		ids:      domain.NewPushIDGenerator(nil),
		log:      log,
	}
}

func (m *Mongo) CreateSession(ctx context.Context, sessionID string, info *domain.SealedUserInfo) (*domain.Session, error) {
	now := time.Now().UnixMilli()
	s := &domain.Session{
		SessionID:    sessionID,
		CreatedAt:    now,
		LastActivity: now,
		Status:       domain.StatusActive,
		UserInfo:     info,
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := m.sessions.ReplaceOne(ctx, bson.M{"_id": sessionID}, s, opts); err != nil {
		return nil, err
	}
	// a re-created session starts with an empty message log, like a
	// whole-subtree set
	if _, err := m.messages.DeleteMany(ctx, bson.M{"session_id": sessionID}); err != nil {
		return nil, err
	}
	m.publish(ctx, sessionID)
	return s, nil
}

func (m *Mongo) GetSession(ctx context.Context, sessionID string, includeUserInfo bool) (*domain.Session, error) {
	opts := options.FindOne()
	if !includeUserInfo {
		opts.SetProjection(bson.M{"user_info": 0})
	}
	var s domain.Session
	if err := m.sessions.FindOne(ctx, bson.M{"_id": sessionID}, opts).Decode(&s); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (m *Mongo) ListSessions(ctx context.Context, includeUserInfo bool) ([]*domain.Session, error) {
	opts := options.Find().SetSort(bson.D{{Key: "last_activity", Value: -1}})
	if !includeUserInfo {
		opts.SetProjection(bson.M{"user_info": 0})
	}
	cur, err := m.sessions.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Session{}
	for cur.Next(ctx) {
		var s domain.Session
		if err := cur.Decode(&s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, cur.Err()
}

func (m *Mongo) UpdateStatus(ctx context.Context, sessionID string, status domain.Status) error {
	update := bson.M{"$set": bson.M{
		"status":        status,
		"last_activity": time.Now().UnixMilli(),
	}}
	res, err := m.sessions.UpdateByID(ctx, sessionID, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	m.publish(ctx, sessionID)
	return nil
}

func (m *Mongo) AppendMessage(ctx context.Context, sessionID string, msg NewMessage) (*domain.Message, error) {
	var cur struct {
		LastActivity int64 `bson:"last_activity"`
	}
	if err := m.sessions.FindOne(ctx, bson.M{"_id": sessionID},
		options.FindOne().SetProjection(bson.M{"last_activity": 1})).Decode(&cur); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now()
	rec := &domain.Message{
		ID:        m.ids.NextID(),
		SessionID: sessionID,
		Text:      msg.Text,
		IsBot:     msg.IsBot,
		IsAdmin:   msg.IsAdmin,
		AdminID:   msg.AdminID,
		Timestamp: nextTimestamp(now.UnixMilli(), cur.LastActivity),
		CreatedAt: now.UTC().Format(time.RFC3339),
	}
	if _, err := m.messages.InsertOne(ctx, rec); err != nil {
		return nil, err
	}

	// second, independent write: the message above survives even if this
	// bump fails
	set := bson.M{"last_activity": rec.Timestamp}
	if msg.IsAdmin {
		set["admin_replied"] = true
	}
	if _, err := m.sessions.UpdateByID(ctx, sessionID, bson.M{"$set": set}); err != nil {
		m.publish(ctx, sessionID)
		return rec, err
	}

	m.publish(ctx, sessionID)
	return rec, nil
}

func (m *Mongo) ListMessages(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	if err := m.sessions.FindOne(ctx, bson.M{"_id": sessionID},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err(); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := m.messages.Find(ctx, bson.M{"session_id": sessionID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []*domain.Message{}
	for cur.Next(ctx) {
		var msg domain.Message
		if err := cur.Decode(&msg); err != nil {
			return nil, err
		}
		out = append(out, &msg)
	}
	return out, cur.Err()
}

func (m *Mongo) SubscribeMessages(ctx context.Context, sessionID string, fn func([]*domain.Message)) (Unsubscribe, error) {
	if _, err := m.GetSession(ctx, sessionID, false); err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := m.rdb.Subscribe(subCtx, messagesChannelPrefix+sessionID)

	go func() {
		m.pushMessages(subCtx, sessionID, fn)
		for range pubsub.Channel() {
			m.pushMessages(subCtx, sessionID, fn)
		}
	}()

	return func() {
		_ = pubsub.Close()
		cancel()
	}, nil
}

func (m *Mongo) SubscribeSessions(_ context.Context, fn func([]*domain.Session)) (Unsubscribe, error) {
	subCtx, cancel := context.WithCancel(context.Background())
	pubsub := m.rdb.Subscribe(subCtx, sessionsChannel)

	go func() {
		m.pushSessions(subCtx, fn)
		for range pubsub.Channel() {
			m.pushSessions(subCtx, fn)
		}
	}()

	return func() {
		_ = pubsub.Close()
		cancel()
	}, nil
}

func (m *Mongo) pushMessages(ctx context.Context, sessionID string, fn func([]*domain.Message)) {
	msgs, err := m.ListMessages(ctx, sessionID)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("message snapshot failed", zap.String("session_id", sessionID), zap.Error(err))
		}
		return
	}
	fn(msgs)
}

func (m *Mongo) pushSessions(ctx context.Context, fn func([]*domain.Session)) {
	sessions, err := m.ListSessions(ctx, false)
	if err != nil {
		if ctx.Err() == nil {
			m.log.Warn("session snapshot failed", zap.Error(err))
		}
		return
	}
	fn(sessions)
}

// publish is best effort; a missed notification only delays the next
// snapshot until the following change.
func (m *Mongo) publish(ctx context.Context, sessionID string) {
	if m.rdb == nil {
		return
	}
	if err := m.rdb.Publish(ctx, messagesChannelPrefix+sessionID, sessionID).Err(); err != nil {
		m.log.Debug("publish message change", zap.Error(err))
	}
	if err := m.rdb.Publish(ctx, sessionsChannel, sessionID).Err(); err != nil {
		m.log.Debug("publish session change", zap.Error(err))
	}
}
