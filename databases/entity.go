package databases

// go generate: mockery --name EntityDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cleanstreak/litter-map-api/models"
)

// Collection names for the two entity kinds. Missions and challenges share one
// document shape, so one database type serves both.
const (
	MissionCollection   = "missions"
	ChallengeCollection = "challenges"
)

// EntityDatabase contains the methods to use with the mission and challenge databases
type EntityDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Entity, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Entity, error)
	InsertOne(ctx context.Context, entity models.Entity, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
	CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error)
	Collection() string
}

type entityDatabase struct {
	db         DatabaseHelper
	collection string
}

// NewMissionDatabase initializes an entity database over the missions collection
func NewMissionDatabase(db DatabaseHelper) EntityDatabase {
	return &entityDatabase{db: db, collection: MissionCollection}
}

// NewChallengeDatabase initializes an entity database over the challenges collection
func NewChallengeDatabase(db DatabaseHelper) EntityDatabase {
	return &entityDatabase{db: db, collection: ChallengeCollection}
}

func (e *entityDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Entity, error) {
	entity := &models.Entity{}
	err := e.db.Collection(e.collection).FindOne(ctx, filter).Decode(&entity)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (e *entityDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Entity, error) {
	var entities []models.Entity
	cursor := e.db.Collection(e.collection).Find(ctx, filter, opts...)
	if err := cursor.All(ctx, &entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (e *entityDatabase) InsertOne(ctx context.Context, entity models.Entity, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return e.db.Collection(e.collection).InsertOne(ctx, entity, opts...)
}

func (e *entityDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return e.db.Collection(e.collection).UpdateOne(ctx, filter, update, opts...)
}

func (e *entityDatabase) CountDocuments(ctx context.Context, filter interface{}, opts ...*options.CountOptions) (int64, error) {
	return e.db.Collection(e.collection).CountDocuments(ctx, filter, opts...)
}

func (e *entityDatabase) Collection() string {
	return e.collection
}
