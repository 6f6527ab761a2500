package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cleanstreak/litter-map-api/api"
	"github.com/cleanstreak/litter-map-api/config"
	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/models"
)

// Entity serves both missions and challenges, the two share a document shape
// and only differ by collection and by which membership array they live in on
// the user document. Mostly used for mocking tests.
type Entity struct {
	DB        databases.EntityDatabase
	UDB       databases.UserDatabase
	Kind      string
	JWTSecret string
	Mailer    *Mailer
}

// membershipField is the array on the user document that tracks which
// missions or challenges the user belongs to.
func (e Entity) membershipField() string {
	if e.Kind == KindChallenge {
		return "user.challengeIds"
	}
	return "user.missionIds"
}

// CreateEntityHandler creates a new mission or challenge. The authenticated
// caller becomes the owner and is seeded as the first member with zero pieces.
func (e Entity) CreateEntityHandler(w http.ResponseWriter, r *http.Request) {
	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	var newEntity models.Entity
	if err := json.NewDecoder(r.Body).Decode(&newEntity); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}
	if newEntity.Name == "" {
		config.ErrorStatus("name is required", http.StatusBadRequest, w, nil)
		return
	}
	if newEntity.StartTime != 0 && newEntity.EndTime != 0 &&
		!newEntity.StartTime.Time().Before(newEntity.EndTime.Time()) {
		config.ErrorStatus("startTime must be before endTime", http.StatusBadRequest, w, nil)
		return
	}

	displayName, err := e.displayNameFor(r.Context(), caller.ID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}

	now := primitive.NewDateTimeFromTime(time.Now())
	newEntity.ID = primitive.NewObjectID()
	newEntity.OwnerUserID = caller.ID
	newEntity.TotalPieces = 0
	newEntity.PendingPieces = 0
	newEntity.Hidden = false
	newEntity.TotalUserPieces = map[string]models.UserPieces{
		caller.ID: {DisplayName: displayName, Pieces: 0},
	}
	newEntity.PendingUsers = []models.PendingUser{}
	newEntity.CreatedAt = now
	newEntity.UpdatedAt = now

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	_, err = e.DB.InsertOne(ctx, newEntity)
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to create %s", e.Kind), http.StatusInternalServerError, w, err)
		return
	}

	// The owner is a member from the start, so track the membership on the
	// user document as well
	uID, err := primitive.ObjectIDFromHex(caller.ID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	_, err = e.UDB.UpdateOne(ctx,
		bson.M{"_id": uID},
		bson.M{"$addToSet": bson.M{e.membershipField(): newEntity.ID.Hex()}},
	)
	if err != nil {
		config.ErrorStatus("failed to update user's memberships", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(newEntity)
}

// EntityHandler returns a mission or challenge by ID. Private entities hide
// their member roster and pending queue from callers that are neither a
// member nor the owner.
func (e Entity) EntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}

	if dbResp.IsPrivate {
		caller, _ := api.RequestUserFrom(r.Context())
		_, isMember := dbResp.TotalUserPieces[caller.ID]
		if !isMember && dbResp.OwnerUserID != caller.ID {
			dbResp.TotalUserPieces = nil
			dbResp.PendingUsers = nil
		}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// EntitiesHandler returns all visible missions or challenges, paginated
func (e Entity) EntitiesHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))

	filter := bson.M{"hidden": bson.M{"$ne": true}}
	if ownerID := r.URL.Query().Get("ownerId"); ownerID != "" {
		filter["ownerUserId"] = ownerID
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.Find(ctx, filter, databases.Paginate(limit, page))
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %ss", e.Kind), http.StatusNotFound, w, err)
		return
	}

	// Because the frontend requires that the data elements be [] instead of
	// null we have to add this snippet
	if dbResp == nil {
		dbResp = []models.Entity{}
	}

	// Private rosters are not redacted per caller here, strip them wholesale
	// from list responses
	for i := range dbResp {
		if dbResp[i].IsPrivate {
			dbResp[i].TotalUserPieces = nil
			dbResp[i].PendingUsers = nil
		}
	}

	b, err := json.Marshal(dbResp)
	if err != nil {
		config.ErrorStatus("failed to marshal response", http.StatusInternalServerError, w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}

// UpdateEntityHandler updates the descriptive fields of a mission or
// challenge. Only the owner may edit, and counter fields are never editable
// through this route.
func (e Entity) UpdateEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		config.ErrorStatus("failed to decode request body", http.StatusBadRequest, w, err)
		return
	}

	allowed := map[string]bool{
		"name":          true,
		"description":   true,
		"isPrivate":     true,
		"startTime":     true,
		"endTime":       true,
		"coverPhotoUrl": true,
	}
	update := bson.M{}
	for key, value := range req {
		if !allowed[key] {
			config.ErrorStatus(fmt.Sprintf("field %q is not editable", key), http.StatusBadRequest, w, nil)
			return
		}
		update[key] = value
	}
	if len(update) == 0 {
		config.ErrorStatus("no editable fields in request body", http.StatusBadRequest, w, nil)
		return
	}
	update["updatedAt"] = primitive.NewDateTimeFromTime(time.Now())

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	// Owner check folded into the filter so a non-owner edit matches nothing
	res, err := e.DB.UpdateOne(ctx,
		bson.M{"_id": eID, "ownerUserId": caller.ID},
		bson.M{"$set": update},
	)
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to update %s", e.Kind), http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing entity from a non-owner caller
		if _, ferr := e.DB.FindOne(ctx, bson.M{"_id": eID}); ferr != nil {
			config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, ferr)
			return
		}
		config.ErrorStatus(fmt.Sprintf("only the owner can edit a %s", e.Kind), http.StatusForbidden, w, nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"message": "%s updated successfully"}`, e.Kind)))
}

// HideEntityHandler soft deletes a mission or challenge. The document and its
// counters stay in the collection so history is preserved, it just drops out
// of list responses.
func (e Entity) HideEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	res, err := e.DB.UpdateOne(ctx,
		bson.M{"_id": eID, "ownerUserId": caller.ID},
		bson.M{"$set": bson.M{"hidden": true, "updatedAt": primitive.NewDateTimeFromTime(time.Now())}},
	)
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to hide %s", e.Kind), http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		if _, ferr := e.DB.FindOne(ctx, bson.M{"_id": eID}); ferr != nil {
			config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, ferr)
			return
		}
		config.ErrorStatus(fmt.Sprintf("only the owner can hide a %s", e.Kind), http.StatusForbidden, w, nil)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"message": "%s hidden successfully"}`, e.Kind)))
}

// JoinEntityHandler adds the authenticated caller to a mission or challenge.
// Public entities admit the caller immediately with a zero piece count,
// private entities queue the caller for owner approval unless the request
// carries a valid invite token. Repeat joins are no-ops, an existing piece
// count is never reset.
func (e Entity) JoinEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	var req struct {
		InviteToken string `json:"inviteToken"`
	}
	// Body is optional for public joins
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}
	if !entityIsOngoing(dbResp, time.Now()) {
		config.ErrorStatus(fmt.Sprintf("%s is unavailable", e.Kind), http.StatusServiceUnavailable, w, nil)
		return
	}

	displayName, err := e.displayNameFor(ctx, caller.ID)
	if err != nil {
		config.ErrorStatus("failed to get user by ID", http.StatusInternalServerError, w, err)
		return
	}

	invited := req.InviteToken != "" && e.inviteTokenValid(req.InviteToken, entityID)
	direct := !dbResp.IsPrivate || invited

	// The filter guards against double entry, a caller already in either the
	// member map or the pending queue matches nothing and the join is a no-op
	filter := bson.M{
		"_id": eID,
		"totalUserPieces." + caller.ID: bson.M{"$exists": false},
		"pendingUsers.uid":             bson.M{"$ne": caller.ID},
	}

	if direct {
		update := bson.M{
			"$set": bson.M{
				"totalUserPieces." + caller.ID: models.UserPieces{DisplayName: displayName, Pieces: 0},
				"updatedAt":                    primitive.NewDateTimeFromTime(time.Now()),
			},
		}
		res, err := e.DB.UpdateOne(ctx, filter, update)
		if err != nil {
			config.ErrorStatus(fmt.Sprintf("failed to join %s", e.Kind), http.StatusInternalServerError, w, err)
			return
		}
		if res.MatchedCount == 0 {
			// The guard excludes pending users, so a caller already in the
			// queue gets promoted here instead, the same shape as an owner
			// approval. Matching the pending entry in the filter keeps the
			// caller out of both sets at once.
			res, err = e.DB.UpdateOne(ctx,
				bson.M{"_id": eID, "pendingUsers.uid": caller.ID},
				bson.M{
					"$pull": bson.M{"pendingUsers": bson.M{"uid": caller.ID}},
					"$set": bson.M{
						"totalUserPieces." + caller.ID: models.UserPieces{DisplayName: displayName, Pieces: 0},
						"updatedAt":                    primitive.NewDateTimeFromTime(time.Now()),
					},
				},
			)
			if err != nil {
				config.ErrorStatus(fmt.Sprintf("failed to join %s", e.Kind), http.StatusInternalServerError, w, err)
				return
			}
		}
		if res.MatchedCount == 0 {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(fmt.Sprintf(`{"message": "already joined %s", "status": "member"}`, e.Kind)))
			return
		}

		uID, err := primitive.ObjectIDFromHex(caller.ID)
		if err != nil {
			config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
			return
		}
		_, err = e.UDB.UpdateOne(ctx,
			bson.M{"_id": uID},
			bson.M{"$addToSet": bson.M{e.membershipField(): entityID}},
		)
		if err != nil {
			config.ErrorStatus("failed to update user's memberships", http.StatusInternalServerError, w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"message": "joined %s successfully", "status": "member"}`, e.Kind)))
		return
	}

	// Private without an invite, append to the pending queue in arrival order
	update := bson.M{
		"$push": bson.M{"pendingUsers": models.PendingUser{UID: caller.ID, DisplayName: displayName}},
		"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
	}
	res, err := e.DB.UpdateOne(ctx, filter, update)
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to join %s", e.Kind), http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"message": "already joined %s", "status": "pending"}`, e.Kind)))
		return
	}

	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"message": "join request pending approval", "status": "pending"}`))
}

// LeaveEntityHandler removes the authenticated caller from a mission or
// challenge. A member's piece count entry is deleted from the entity and the
// membership reference is removed from the user document, both updates run
// concurrently. Callers that were never members only get the stale reference
// cleaned off their user document.
func (e Entity) LeaveEntityHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	uID, err := primitive.ObjectIDFromHex(caller.ID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}

	userPull := bson.M{"$pull": bson.M{e.membershipField(): entityID}}

	if _, isMember := dbResp.TotalUserPieces[caller.ID]; isMember {
		if entityHasEnded(dbResp, time.Now()) {
			config.ErrorStatus(fmt.Sprintf("%s has ended, leaving is unavailable", e.Kind), http.StatusServiceUnavailable, w, nil)
			return
		}

		// Delete the member's piece entry and the membership reference
		// together, either failing fails the whole leave
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			_, err := e.DB.UpdateOne(gctx,
				bson.M{"_id": eID},
				bson.M{
					"$unset": bson.M{"totalUserPieces." + caller.ID: ""},
					"$set":   bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
				},
			)
			return err
		})
		g.Go(func() error {
			_, err := e.UDB.UpdateOne(gctx, bson.M{"_id": uID}, userPull)
			return err
		})
		if err := g.Wait(); err != nil {
			config.ErrorStatus(fmt.Sprintf("failed to leave %s", e.Kind), http.StatusInternalServerError, w, err)
			return
		}

		w.WriteHeader(http.StatusOK)
		w.Write([]byte(fmt.Sprintf(`{"message": "left %s successfully"}`, e.Kind)))
		return
	}

	if pendingUserIn(dbResp.PendingUsers, caller.ID) {
		_, err = e.DB.UpdateOne(ctx,
			bson.M{"_id": eID},
			bson.M{"$pull": bson.M{"pendingUsers": bson.M{"uid": caller.ID}}},
		)
		if err != nil {
			config.ErrorStatus("failed to withdraw join request", http.StatusInternalServerError, w, err)
			return
		}
	}

	// Not a member, the entity document keeps its counters untouched and only
	// the user document gets the stale reference removed
	_, err = e.UDB.UpdateOne(ctx, bson.M{"_id": uID}, userPull)
	if err != nil {
		config.ErrorStatus("failed to update user's memberships", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(fmt.Sprintf(`{"message": "left %s successfully"}`, e.Kind)))
}

// ApprovePendingUserHandler admits a pending user into a private mission or
// challenge. Owner only. The pending entry is removed and the user is seeded
// into the member map with zero pieces in a single update, so a concurrent
// approve of the same user matches nothing and returns not found.
func (e Entity) ApprovePendingUserHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]
	userID := mux.Vars(r)["user_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}
	if dbResp.OwnerUserID != caller.ID {
		config.ErrorStatus(fmt.Sprintf("only the owner can approve %s join requests", e.Kind), http.StatusForbidden, w, nil)
		return
	}

	var pending *models.PendingUser
	for i := range dbResp.PendingUsers {
		if dbResp.PendingUsers[i].UID == userID {
			pending = &dbResp.PendingUsers[i]
			break
		}
	}
	if pending == nil {
		config.ErrorStatus("no pending join request for user", http.StatusNotFound, w, nil)
		return
	}

	res, err := e.DB.UpdateOne(ctx,
		bson.M{"_id": eID, "pendingUsers.uid": userID},
		bson.M{
			"$pull": bson.M{"pendingUsers": bson.M{"uid": userID}},
			"$set": bson.M{
				"totalUserPieces." + userID: models.UserPieces{DisplayName: pending.DisplayName, Pieces: 0},
				"updatedAt":                 primitive.NewDateTimeFromTime(time.Now()),
			},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to approve pending user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		// Raced with a reject or a withdrawal
		config.ErrorStatus("no pending join request for user", http.StatusNotFound, w, nil)
		return
	}

	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}
	_, err = e.UDB.UpdateOne(ctx,
		bson.M{"_id": uID},
		bson.M{"$addToSet": bson.M{e.membershipField(): entityID}},
	)
	if err != nil {
		config.ErrorStatus("failed to update user's memberships", http.StatusInternalServerError, w, err)
		return
	}

	e.Mailer.SendAdmissionDecision(userID, e.Kind, dbResp.Name, true)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "pending user approved successfully"}`))
}

// RejectPendingUserHandler removes a pending user from the queue without
// admitting them. Owner only.
func (e Entity) RejectPendingUserHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]
	userID := mux.Vars(r)["user_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}
	if dbResp.OwnerUserID != caller.ID {
		config.ErrorStatus(fmt.Sprintf("only the owner can reject %s join requests", e.Kind), http.StatusForbidden, w, nil)
		return
	}

	res, err := e.DB.UpdateOne(ctx,
		bson.M{"_id": eID, "pendingUsers.uid": userID},
		bson.M{
			"$pull": bson.M{"pendingUsers": bson.M{"uid": userID}},
			"$set":  bson.M{"updatedAt": primitive.NewDateTimeFromTime(time.Now())},
		},
	)
	if err != nil {
		config.ErrorStatus("failed to reject pending user", http.StatusInternalServerError, w, err)
		return
	}
	if res.MatchedCount == 0 {
		config.ErrorStatus("no pending join request for user", http.StatusNotFound, w, nil)
		return
	}

	e.Mailer.SendAdmissionDecision(userID, e.Kind, dbResp.Name, false)

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message": "pending user rejected successfully"}`))
}

// InviteTokenHandler mints a signed invite token for a private mission or
// challenge. Any current member can invite, the token lets the recipient skip
// the pending queue for seven days.
func (e Entity) InviteTokenHandler(w http.ResponseWriter, r *http.Request) {
	entityID := mux.Vars(r)["entity_id"]

	caller, ok := api.RequestUserFrom(r.Context())
	if !ok {
		config.ErrorStatus("missing authenticated user", http.StatusUnauthorized, w, nil)
		return
	}

	eID, err := primitive.ObjectIDFromHex(entityID)
	if err != nil {
		config.ErrorStatus("failed to get objectID from Hex", http.StatusBadRequest, w, err)
		return
	}

	ctx, cancel := api.WithQueryTimeout(r.Context())
	defer cancel()

	dbResp, err := e.DB.FindOne(ctx, bson.M{"_id": eID})
	if err != nil {
		config.ErrorStatus(fmt.Sprintf("failed to get %s by ID", e.Kind), http.StatusNotFound, w, err)
		return
	}
	if _, isMember := dbResp.TotalUserPieces[caller.ID]; !isMember && dbResp.OwnerUserID != caller.ID {
		config.ErrorStatus(fmt.Sprintf("only members can invite to a %s", e.Kind), http.StatusForbidden, w, nil)
		return
	}

	claims := jwt.MapClaims{
		"entityId": entityID,
		"kind":     e.Kind,
		"iss":      caller.ID,
		"exp":      time.Now().Add(7 * 24 * time.Hour).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(e.JWTSecret))
	if err != nil {
		config.ErrorStatus("failed to sign invite token", http.StatusInternalServerError, w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"inviteToken": signed})
}

// inviteTokenValid checks a join request's invite token against the entity
// being joined
func (e Entity) inviteTokenValid(tokenString, entityID string) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(e.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		zap.S().Debugw("invalid invite token", "error", err)
		return false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return false
	}
	return claims["entityId"] == entityID && claims["kind"] == e.Kind
}

func (e Entity) displayNameFor(ctx context.Context, userID string) (string, error) {
	uID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", err
	}
	user := models.User{}
	if err := e.UDB.FindOne(ctx, bson.M{"_id": uID}).Decode(&user); err != nil {
		return "", err
	}
	return user.Details.DisplayName, nil
}

func pendingUserIn(pending []models.PendingUser, uid string) bool {
	for _, p := range pending {
		if p.UID == uid {
			return true
		}
	}
	return false
}
