package repository

import (
	"cicdassess/internal/editkey"
	"cicdassess/internal/model"
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// FeedbackRepo persists survey submissions. Edit keys are stored and queried in canonical
// (upper-case) form, so lookups are case-insensitive for callers.
type FeedbackRepo interface {
	Insert(ctx context.Context, fb *model.Feedback) (string, error)
	FindByEditKey(ctx context.Context, key string) (*model.Feedback, error)
	ListAll(ctx context.Context) ([]*model.Feedback, error)
	Patch(ctx context.Context, id string, patch model.FeedbackPatch) error
	EnsureIndexes(ctx context.Context) error
}

type feedbackRepo struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewFeedbackRepo creates a new feedback repository
func NewFeedbackRepo(db *mongo.Database) FeedbackRepo {
	return &feedbackRepo{
		collection: db.Collection("feedback"),
		now:        time.Now,
	}
}

func (r *feedbackRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "editKey", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("editKey_unique"),
		},
		{
			Keys:    bson.D{{Key: "submittedAt", Value: -1}},
			Options: options.Index().SetName("submittedAt_desc"),
		},
	})
	return err
}

func (r *feedbackRepo) Insert(ctx context.Context, fb *model.Feedback) (string, error) {
	fb.ID = ""
	fb.EditKey = editkey.Canonicalize(fb.EditKey)
	fb.SubmittedAt = r.now().UTC()
	fb.UpdatedAt = nil

	res, err := r.collection.InsertOne(ctx, fb)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrDuplicateEditKey
	}
	if err != nil {
		return "", err
	}

	oid, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("unexpected inserted id type %T", res.InsertedID)
	}
	fb.ID = oid.Hex()
	return fb.ID, nil
}

func (r *feedbackRepo) FindByEditKey(ctx context.Context, key string) (*model.Feedback, error) {
	var fb model.Feedback
	err := r.collection.FindOne(ctx, bson.M{"editKey": editkey.Canonicalize(key)}).Decode(&fb)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &fb, nil
}

func (r *feedbackRepo) ListAll(ctx context.Context) ([]*model.Feedback, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submittedAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	subs := make([]*model.Feedback, 0)
	if err := cursor.All(ctx, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *feedbackRepo) Patch(ctx context.Context, id string, patch model.FeedbackPatch) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	update := bson.M{"$set": bson.M{
		"nickname":      patch.Nickname,
		"role":          patch.Role,
		"answers":       patch.Answers,
		"totalScore":    patch.TotalScore,
		"maturityLevel": patch.MaturityLevel,
		"updatedAt":     r.now().UTC(),
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
