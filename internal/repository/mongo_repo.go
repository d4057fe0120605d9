package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"chatrelay-backend/internal/models"
)

const (
	transcriptCollection = "chats"
	chatIndexCollection  = "userchats"
)

// MongoTranscriptRepo stores transcripts in the chats collection. Collections
// written by older clients can hold several documents per (userId, id); reads
// and writes both target the newest one.
type MongoTranscriptRepo struct {
	coll *mongo.Collection
}

func NewMongoTranscriptRepo(db *mongo.Database) *MongoTranscriptRepo {
	return &MongoTranscriptRepo{coll: db.Collection(transcriptCollection)}
}

// transcriptIndex is non-unique so existing duplicates do not block startup.
func transcriptIndex() mongo.IndexModel {
	return mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "id", Value: 1}, {Key: "updatedAt", Value: -1}},
		Options: options.Index().SetName("userId_id_updatedAt"),
	}
}

func (r *MongoTranscriptRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, transcriptIndex())
	return errors.Wrap(err, "failed to create transcript index")
}

func saveTranscriptOptions() *options.FindOneAndUpdateOptions {
	return options.FindOneAndUpdate().
		SetSort(bson.D{{Key: "updatedAt", Value: -1}}).
		SetUpsert(true).
		SetReturnDocument(options.After)
}

// Save replaces the history of the newest matching document, or inserts one.
func (r *MongoTranscriptRepo) Save(ctx context.Context, userID, chatID string, history []models.ConversationTurn) (*models.ChatTranscript, error) {
	if history == nil {
		history = []models.ConversationTurn{}
	}
	now := time.Now().UTC()
	filter := bson.M{"userId": userID, "id": chatID}
	update := bson.M{
		"$set":         bson.M{"history": history, "updatedAt": now},
		"$setOnInsert": bson.M{"createdAt": now},
	}

	t := &models.ChatTranscript{}
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, saveTranscriptOptions()).Decode(t); err != nil {
		return nil, errors.Wrapf(err, "failed to save transcript %s/%s", userID, chatID)
	}
	return t, nil
}

func (r *MongoTranscriptRepo) Fetch(ctx context.Context, userID, chatID string) (*models.ChatTranscript, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"userId": userID, "id": chatID}}},
		{{Key: "$addFields", Value: bson.M{"historyLen": bson.M{"$size": "$history"}}}},
		{{Key: "$sort", Value: bson.D{{Key: "updatedAt", Value: -1}, {Key: "historyLen", Value: -1}}}},
		{{Key: "$limit", Value: 1}},
	}

	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch transcript %s/%s", userID, chatID)
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		if err := cur.Err(); err != nil {
			return nil, errors.Wrap(err, "failed to read transcript cursor")
		}
		return nil, ErrNotFound
	}

	t := &models.ChatTranscript{}
	if err := cur.Decode(t); err != nil {
		return nil, errors.Wrap(err, "failed to decode transcript")
	}
	return t, nil
}

// MongoChatIndexRepo keeps one userchats document per user with an embedded
// chats array, updated with positional $set and $pull.
type MongoChatIndexRepo struct {
	coll *mongo.Collection
}

func NewMongoChatIndexRepo(db *mongo.Database) *MongoChatIndexRepo {
	return &MongoChatIndexRepo{coll: db.Collection(chatIndexCollection)}
}

func (r *MongoChatIndexRepo) EnsureSummary(ctx context.Context, userID, chatID, defaultTitle string) (bool, error) {
	summary := models.ChatSummary{ChatID: chatID, Title: defaultTitle}

	// Creates the index with this summary when the user has none yet.
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID},
		bson.M{"$setOnInsert": bson.M{"chats": []models.ChatSummary{summary}}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to ensure chat index for %s", userID)
	}
	if res.UpsertedCount > 0 {
		return true, nil
	}

	res, err = r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "chats._id": bson.M{"$ne": chatID}},
		bson.M{"$push": bson.M{"chats": summary}},
	)
	if err != nil {
		return false, errors.Wrapf(err, "failed to ensure summary %s/%s", userID, chatID)
	}
	return res.ModifiedCount > 0, nil
}

func (r *MongoChatIndexRepo) Rename(ctx context.Context, userID, chatID, newTitle string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "chats._id": chatID},
		bson.M{"$set": bson.M{"chats.$.title": newTitle}},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to rename chat %s/%s", userID, chatID)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoChatIndexRepo) Delete(ctx context.Context, userID, chatID string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"userId": userID, "chats._id": chatID},
		bson.M{"$pull": bson.M{"chats": bson.M{"_id": chatID}}},
	)
	if err != nil {
		return errors.Wrapf(err, "failed to delete chat %s/%s", userID, chatID)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *MongoChatIndexRepo) List(ctx context.Context, userID string) (*models.ChatIndex, error) {
	ix := &models.ChatIndex{}
	err := r.coll.FindOne(ctx, bson.M{"userId": userID}).Decode(ix)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load chat index for %s", userID)
	}
	if ix.Chats == nil {
		ix.Chats = []models.ChatSummary{}
	}
	return ix, nil
}
