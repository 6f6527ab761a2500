package databases

// go generate: mockery --name PhotoDatabase

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/cleanstreak/litter-map-api/models"
)

const photoCollection = "photos"

// PhotoDatabase contains the methods to use with the photo database
type PhotoDatabase interface {
	FindOne(ctx context.Context, filter interface{}) (*models.Photo, error)
	Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error)
	InsertOne(ctx context.Context, photo models.Photo, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error)
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

type photoDatabase struct {
	db DatabaseHelper
}

// NewPhotoDatabase initializes a new instance of photo database with the provided db connection
func NewPhotoDatabase(db DatabaseHelper) PhotoDatabase {
	return &photoDatabase{
		db: db,
	}
}

func (p *photoDatabase) FindOne(ctx context.Context, filter interface{}) (*models.Photo, error) {
	photo := &models.Photo{}
	err := p.db.Collection(photoCollection).FindOne(ctx, filter).Decode(&photo)
	if err != nil {
		return nil, err
	}
	return photo, nil
}

func (p *photoDatabase) Find(ctx context.Context, filter interface{}, opts ...*options.FindOptions) ([]models.Photo, error) {
	var photos []models.Photo
	cursor := p.db.Collection(photoCollection).Find(ctx, filter, opts...)
	if err := cursor.All(ctx, &photos); err != nil {
		return nil, err
	}
	return photos, nil
}

func (p *photoDatabase) InsertOne(ctx context.Context, photo models.Photo, opts ...*options.InsertOneOptions) (InsertOneResultHelper, error) {
	return p.db.Collection(photoCollection).InsertOne(ctx, photo, opts...)
}

func (p *photoDatabase) UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error) {
	return p.db.Collection(photoCollection).UpdateOne(ctx, filter, update, opts...)
}
