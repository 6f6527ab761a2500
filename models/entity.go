package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entity holds the structure for the mission and challenge collections in mongo.
// Both collections share the same document shape; the collection a document lives
// in decides whether it is a mission or a challenge.
type Entity struct {
	ID              primitive.ObjectID    `json:"_id" bson:"_id"`
	Name            string                `json:"name" bson:"name"`
	Description     string                `json:"description" bson:"description"`
	OwnerUserID     string                `json:"ownerUserId" bson:"ownerUserId"`
	IsPrivate       bool                  `json:"isPrivate" bson:"isPrivate"`
	StartTime       primitive.DateTime    `json:"startTime" bson:"startTime"`
	EndTime         primitive.DateTime    `json:"endTime" bson:"endTime"`
	CoverPhotoURL   string                `json:"coverPhotoUrl" bson:"coverPhotoUrl"`
	TotalPieces     int64                 `json:"totalPieces" bson:"totalPieces"`
	PendingPieces   int64                 `json:"pendingPieces" bson:"pendingPieces"`
	TotalUserPieces map[string]UserPieces `json:"totalUserPieces,omitempty" bson:"totalUserPieces"`
	PendingUsers    []PendingUser         `json:"pendingUsers,omitempty" bson:"pendingUsers"`
	Hidden          bool                  `json:"hidden" bson:"hidden"`
	CreatedAt       primitive.DateTime    `json:"createdAt" bson:"createdAt"`
	UpdatedAt       primitive.DateTime    `json:"updatedAt" bson:"updatedAt"`
}

// UserPieces is a single member entry inside totalUserPieces, keyed by user id.
// Presence of a key in totalUserPieces is the definition of membership.
type UserPieces struct {
	DisplayName string `json:"displayName" bson:"displayName"`
	Pieces      int64  `json:"pieces" bson:"pieces"`
}

// PendingUser is a user awaiting owner admission into a private entity.
// The pendingUsers array keeps insertion order for fair review.
type PendingUser struct {
	UID         string `json:"uid" bson:"uid"`
	DisplayName string `json:"displayName" bson:"displayName"`
}
