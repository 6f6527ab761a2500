package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Photo holds the structure for the photo collection in mongo. A photo may be
// attached to any number of missions and challenges at once; Pieces is the number
// of litter items the uploader counted in the shot.
type Photo struct {
	ID           primitive.ObjectID `json:"_id" bson:"_id"`
	OwnerID      string             `json:"ownerId" bson:"ownerId"`
	URL          string             `json:"url" bson:"url"`
	PublicID     string             `json:"publicId" bson:"publicId"`
	Pieces       int64              `json:"pieces" bson:"pieces"`
	Moderated    bool               `json:"moderated" bson:"moderated"`
	Published    bool               `json:"published" bson:"published"`
	MissionIDs   []string           `json:"missionIds" bson:"missionIds"`
	ChallengeIDs []string           `json:"challengeIds" bson:"challengeIds"`
	UploadedAt   primitive.DateTime `json:"uploadedAt" bson:"uploadedAt"`
	ModeratedAt  primitive.DateTime `json:"moderatedAt,omitempty" bson:"moderatedAt,omitempty"`
}
