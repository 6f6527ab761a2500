package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User holds the structure for the user collection in mongo
type User struct {
	ID      primitive.ObjectID `json:"_id" bson:"_id"`
	Details UserDetails        `json:"user" bson:"user"`
	Version int32              `json:"__v" bson:"__v"`
}

// UserDetails holds the structure for the inner user structure as defined in the
// user collection in mongo. MissionIDs and ChallengeIDs are the user-side half of
// the denormalized membership relation; they are only ever mutated with
// $addToSet / $pull so retries stay idempotent.
type UserDetails struct {
	Email        string      `json:"email" bson:"email"`
	DisplayName  string      `json:"displayName" bson:"displayName"`
	Password     string      `json:"password,omitempty" bson:"password"`
	Moderator    bool        `json:"moderator" bson:"moderator"`
	MissionIDs   []string    `json:"missionIds" bson:"missionIds"`
	ChallengeIDs []string    `json:"challengeIds" bson:"challengeIds"`
	CreatedAt    interface{} `json:"createdAt" bson:"createdAt"`
	UpdatedAt    interface{} `json:"updatedAt" bson:"updatedAt"`
}
