package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/api"
	"github.com/cleanstreak/litter-map-api/config"
	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/models"
)

// Photo struct mostly used for mocking tests
type Photo struct {
	DB         databases.PhotoDatabase
	UDB        databases.UserDatabase
	Missions   databases.EntityDatabase
	Challenges databases.EntityDatabase
	Reconciler *Reconciler
	Destroyer  AssetDestroyer
}

// CreatePhotoHandler records an uploaded photo and provisionally counts its
// pieces into pendingPieces on every referenced mission and challenge.
// References to entities that are missing or no longer ongoing are dropped
// from the stored photo, so the later reconciliation never touches them.
func (p Photo) CreatePhotoHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	var newPhoto models.Photo
	if err := json.NewDecoder(r.Body).Decode(&newPhoto); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if newPhoto.URL == "" {
		config.ErrorStatus("url is required", http.StatusBadRequest, w, nil)
		return
	}
	if newPhoto.Pieces < 0 {
		config.ErrorStatus("pieces must not be negative", http.StatusBadRequest, w, nil)
		return
	}

	newPhoto.ID = primitive.NewObjectID()
	newPhoto.OwnerID = caller.ID
	newPhoto.Moderated = false
	// publishing is a moderation decision, the uploader cannot preset it
	newPhoto.Published = false
	newPhoto.UploadedAt = primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	newPhoto.MissionIDs = p.countPending(ctx, p.Missions, newPhoto.MissionIDs, newPhoto.Pieces)
	newPhoto.ChallengeIDs = p.countPending(ctx, p.Challenges, newPhoto.ChallengeIDs, newPhoto.Pieces)

	_, err := p.DB.InsertOne(ctx, newPhoto)
	if err != nil {
		config.ErrorStatus("failed to create photo", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newPhoto)
}

// countPending bumps pendingPieces on each referenced entity and returns the
// references that stuck. An entity that is gone, hidden or past its end time
// rejects the count and the reference is dropped.
func (p Photo) countPending(ctx context.Context, db databases.EntityDatabase, entityIDs []string, pieces int64) []string {
	kept := []string{}
	for _, id := range entityIDs {
		eID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			zap.S().Debugw("dropping malformed entity reference", "entityID", id)
			continue
		}
		entity, err := db.FindOne(ctx, bson.M{"_id": eID})
		if err != nil || entity.Hidden || !entityIsOngoing(entity, time.Now()) {
			zap.S().Debugw("dropping unavailable entity reference",
				"collection", db.Collection(),
				"entityID", id)
			continue
		}
		if pieces > 0 {
			res, err := db.UpdateOne(ctx,
				bson.M{"_id": eID},
				bson.M{
					"$inc": bson.M{"pendingPieces": pieces},
					"$set": bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
				},
			)
			if err != nil || res.MatchedCount == 0 {
				zap.S().Warnw("failed to count pending pieces",
					"collection", db.Collection(),
					"entityID", id,
					"error", err)
				continue
			}
		}
		kept = append(kept, id)
	}
	return kept
}

// PhotoHandler returns a photo given a photoID
func (p Photo) PhotoHandler(w http.ResponseWriter, r *http.Request) {
	photoID := mux.Vars(r)["photo_id"]

	pID, err := primitive.ObjectIDFromHex(photoID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get photo by ID", http.StatusNotFound, w, err)
		return
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// ModeratePhotoHandler records a moderation decision on a photo. Moderators
// only. Approval publishes the photo and reconciles its pieces on every
// referenced entity. Rejection keeps it unpublished, drains the provisional
// count and destroys the stored asset. The moderated flag flips exactly once,
// a photo that was already moderated is left untouched so repeat decisions
// never double count.
func (p Photo) ModeratePhotoHandler(w http.ResponseWriter, r *http.Request) {
	photoID := mux.Vars(r)["photo_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	pID, err := primitive.ObjectIDFromHex(photoID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if req.Decision != "approve" && req.Decision != "reject" {
		config.ErrorStatus("decision must be approve or reject", http.StatusBadRequest, w, nil)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	isModerator, err := p.callerIsModerator(ctx, caller.ID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}
	if !isModerator {
		config.ErrorStatus("only moderators can moderate photos", http.StatusForbidden, w, nil)
		return
	}

	photo, err := p.DB.FindOne(ctx, bson.M{"_id": pID})
	if err != nil {
		config.ErrorStatus("failed to get photo by ID", http.StatusNotFound, w, err)
		return
	}

	// Approval is what publishes a photo, rejection keeps it unpublished
	update := bson.M{"$set": bson.M{
		"moderated":   true,
		"moderatedAt": primitive.NewDateTimeFromTime(time.Now()),
		"published":   req.Decision == "approve",
	}}

	// The moderated:false guard makes the flip edge triggered, only the
	// request that wins the race reconciles
	res, err := p.DB.UpdateOne(ctx, bson.M{"_id": pID, "moderated": false}, update)
	if err != nil {
		config.ErrorStatus("failed to moderate photo", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"message": "photo already moderated"}`))
		return
	}

	photo.Published = req.Decision == "approve"

	if req.Decision == "reject" {
		if p.Destroyer != nil {
			if err := p.Destroyer.Destroy(ctx, photo.PublicID); err != nil {
				zap.S().Errorw("failed to destroy rejected photo asset",
					"photoID", photoID,
					"publicID", photo.PublicID,
					"error", err)
			}
		}
	}

	failed := p.Reconciler.Apply(ctx, photo)

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"message":          "photo moderated successfully",
		"decision":         req.Decision,
		"entitiesFailed":   failed,
		"piecesReconciled": photo.Pieces,
	})
}

func (p Photo) callerIsModerator(ctx context.Context, userID string) (bool, error) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return false, err
	}
	user := models.User{}
	if err := p.UDB.FindOne(ctx, bson.M{"_id": uID}).Decode(&user); err != nil {
		return false, err
	}
	return user.Details.Moderator, nil
}
