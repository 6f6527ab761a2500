package databases

// go generate: mockery --name SchedulerLockDatabase

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const lockCollection = "schedulerLocks"

// SchedulerLockDatabase provides a mongo-backed distributed lock so cron jobs run on
// exactly one instance at a time
type SchedulerLockDatabase interface {
	TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, jobName, instanceID string) error
}

type schedulerLockDatabase struct {
	db DatabaseHelper
}

// NewSchedulerLockDatabase initializes a new instance of scheduler lock database
func NewSchedulerLockDatabase(db DatabaseHelper) SchedulerLockDatabase {
	return &schedulerLockDatabase{
		db: db,
	}
}

func (s *schedulerLockDatabase) TryAcquireLock(ctx context.Context, jobName, instanceID string, ttl time.Duration) (bool, error) {
	now := time.Now()

	// Match when we already own the lock or the previous holder's lease expired.
	// The upsert covers the no-document case; a duplicate key error means another
	// instance holds a live lease.
	filter := bson.M{
		"_id": jobName,
		"$or": []bson.M{
			{"owner": instanceID},
			{"expiresAt": bson.M{"$lt": primitive.NewDateTimeFromTime(now)}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"owner":     instanceID,
			"expiresAt": primitive.NewDateTimeFromTime(now.Add(ttl)),
		},
	}

	res, err := s.db.Collection(lockCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, err
	}
	return res.MatchedCount == 1 || res.UpsertedCount == 1, nil
}

func (s *schedulerLockDatabase) ReleaseLock(ctx context.Context, jobName, instanceID string) error {
	return s.db.Collection(lockCollection).DeleteOne(ctx, bson.M{"_id": jobName, "owner": instanceID})
}
