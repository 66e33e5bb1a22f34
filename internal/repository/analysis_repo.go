package repository

import (
	"cicdassess/internal/model"
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// currentAnalysisID is the fixed _id of the singleton analysis document.
const currentAnalysisID = "current"

// AnalysisRepo stores the single most recent analysis
type AnalysisRepo interface {
	GetLatest(ctx context.Context) (*model.Analysis, error)
	Replace(ctx context.Context, a *model.Analysis) error
}

type analysisRepo struct {
	collection *mongo.Collection
}

// NewAnalysisRepo creates a new analysis repository
func NewAnalysisRepo(db *mongo.Database) AnalysisRepo {
	return &analysisRepo{collection: db.Collection("analysis")}
}

func (r *analysisRepo) GetLatest(ctx context.Context) (*model.Analysis, error) {
	var a model.Analysis
	err := r.collection.FindOne(ctx, bson.M{"_id": currentAnalysisID}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *analysisRepo) Replace(ctx context.Context, a *model.Analysis) error {
	a.ID = currentAnalysisID
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": currentAnalysisID}, a, opts)
	return err
}
