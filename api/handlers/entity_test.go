package handlers_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/cleanstreak/litter-map-api/api"
	"github.com/cleanstreak/litter-map-api/api/handlers"
	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/databases/mocks"
	"github.com/cleanstreak/litter-map-api/models"
)

type MockDatabaseHelper struct {
	mock.Mock
}

// Client provides a mock function.
func (_m *MockDatabaseHelper) Client() databases.ClientHelper {
	ret := _m.Called()

	var r0 databases.ClientHelper
	if rf, ok := ret.Get(0).(func() databases.ClientHelper); ok {
		r0 = rf()
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.ClientHelper)
		}
	}

	return r0
}

// Collection provides a mock function.
func (_m *MockDatabaseHelper) Collection(name string) databases.CollectionHelper {
	ret := _m.Called(name)

	var r0 databases.CollectionHelper
	if rf, ok := ret.Get(0).(func(string) databases.CollectionHelper); ok {
		r0 = rf(name)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(databases.CollectionHelper)
		}
	}

	return r0
}

// entityTestEnv wires a mission handler over mocked mission and user collections
type entityTestEnv struct {
	missionConn *mocks.CollectionHelper
	userConn    *mocks.CollectionHelper
	handler     handlers.Entity
}

func newEntityTestEnv() *entityTestEnv {
	db := &MockDatabaseHelper{}
	missionConn := &mocks.CollectionHelper{}
	userConn := &mocks.CollectionHelper{}

	db.On("Collection", "missions").Return(missionConn)
	db.On("Collection", "users").Return(userConn)

	return &entityTestEnv{
		missionConn: missionConn,
		userConn:    userConn,
		handler: handlers.Entity{
			DB:        databases.NewMissionDatabase(db),
			UDB:       databases.NewUserDatabase(db),
			Kind:      handlers.KindMission,
			JWTSecret: "test-secret",
		},
	}
}

// expectEntity primes a FindOne on the mission collection to decode into the
// given document
func (env *entityTestEnv) expectEntity(entity models.Entity) {
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(**models.Entity)
		**arg = entity
	})
	env.missionConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
}

// expectCallerUser primes a FindOne on the users collection for the display
// name lookup
func (env *entityTestEnv) expectCallerUser(displayName string) {
	singleResult := &mocks.SingleResultHelper{}
	singleResult.On("Decode", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		arg := args.Get(0).(*models.User)
		arg.Details.DisplayName = displayName
	})
	env.userConn.On("FindOne", mock.Anything, mock.Anything).Return(singleResult)
}

func authedRequest(method, target, body, callerID string) *http.Request {
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, target, strings.NewReader("{}"))
	} else {
		req, _ = http.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(api.WithRequestUser(req.Context(), callerID, "tester@cleanstreak.app"))
}

func TestEntity_JoinEntityHandlerPublicJoin(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{ID: entityID, Name: "River Sweep"})
	env.expectCallerUser("Sam")

	// the guard filter must exclude existing members and pending users so a
	// repeat join can never reset pieces
	env.missionConn.On("UpdateOne", mock.Anything,
		mock.MatchedBy(func(filter interface{}) bool {
			f, ok := filter.(bson.M)
			if !ok {
				return false
			}
			exists, hasGuard := f["totalUserPieces."+callerID].(bson.M)
			pendingGuard, hasPending := f["pendingUsers.uid"].(bson.M)
			return hasGuard && exists["$exists"] == false &&
				hasPending && pendingGuard["$ne"] == callerID
		}),
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			set, ok := u["$set"].(bson.M)
			if !ok {
				return false
			}
			up, ok := set["totalUserPieces."+callerID].(models.UserPieces)
			return ok && up.DisplayName == "Sam" && up.Pieces == 0
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	env.userConn.On("UpdateOne", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			addToSet, ok := u["$addToSet"].(bson.M)
			return ok && addToSet["user.missionIds"] == entityID.Hex()
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/join", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.JoinEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "joined mission successfully")
}

func TestEntity_JoinEntityHandlerRepeatJoinIsNoOp(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID: entityID,
		TotalUserPieces: map[string]models.UserPieces{
			callerID: {DisplayName: "Sam", Pieces: 42},
		},
	})
	env.expectCallerUser("Sam")

	// the member guard in the filter matches nothing for an existing member
	env.missionConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/join", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.JoinEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "already joined")
	// the membership array must not be touched on a repeat join
	env.userConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_JoinEntityHandlerPrivateGoesPending(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{ID: entityID, IsPrivate: true})
	env.expectCallerUser("Jordan")

	env.missionConn.On("UpdateOne", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			push, ok := u["$push"].(bson.M)
			if !ok {
				return false
			}
			p, ok := push["pendingUsers"].(models.PendingUser)
			return ok && p.UID == callerID && p.DisplayName == "Jordan"
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/join", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.JoinEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Contains(t, rr.Body.String(), "pending approval")
	// no membership until the owner approves
	env.userConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_JoinEntityHandlerEndedIsUnavailable(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:      entityID,
		EndTime: primitive.NewDateTimeFromTime(time.Now().Add(-time.Hour)),
	})

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/join", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.JoinEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), "mission is unavailable")
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_LeaveEntityHandlerMember(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID: entityID,
		TotalUserPieces: map[string]models.UserPieces{
			callerID: {DisplayName: "Sam", Pieces: 17},
		},
	})

	env.missionConn.On("UpdateOne", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			unset, ok := u["$unset"].(bson.M)
			if !ok {
				return false
			}
			_, hasKey := unset["totalUserPieces."+callerID]
			return hasKey
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	env.userConn.On("UpdateOne", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			pull, ok := u["$pull"].(bson.M)
			return ok && pull["user.missionIds"] == entityID.Hex()
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/leave", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.LeaveEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "left mission successfully")
	env.missionConn.AssertExpectations(t)
	env.userConn.AssertExpectations(t)
}

func TestEntity_LeaveEntityHandlerNonMemberOnlyCleansUserDoc(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	// caller is not in totalUserPieces and not pending
	env.expectEntity(models.Entity{ID: entityID})

	env.userConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 0}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/leave", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.LeaveEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	// the entity document and its counters must stay untouched
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_LeaveEntityHandlerEndedIsUnavailable(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:      entityID,
		EndTime: primitive.NewDateTimeFromTime(time.Now().Add(-time.Hour)),
		TotalUserPieces: map[string]models.UserPieces{
			callerID: {DisplayName: "Sam", Pieces: 9},
		},
	})

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/leave", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.LeaveEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_ApprovePendingUserHandlerNotOwner(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()
	pendingID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:           entityID,
		OwnerUserID:  primitive.NewObjectID().Hex(),
		PendingUsers: []models.PendingUser{{UID: pendingID, DisplayName: "Kim"}},
	})

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/pending/"+pendingID+"/approve", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex(), "user_id": pendingID})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.ApprovePendingUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), "only the owner")
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_ApprovePendingUserHandlerAbsentIsNotFound(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID().Hex()
	pendingID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:          entityID,
		OwnerUserID: ownerID,
	})

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/pending/"+pendingID+"/approve", "", ownerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex(), "user_id": pendingID})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.ApprovePendingUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no pending join request")
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_ApprovePendingUserHandler(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID().Hex()
	first := primitive.NewObjectID().Hex()
	second := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:          entityID,
		OwnerUserID: ownerID,
		PendingUsers: []models.PendingUser{
			{UID: first, DisplayName: "Kim"},
			{UID: second, DisplayName: "Lee"},
		},
	})

	env.missionConn.On("UpdateOne", mock.Anything,
		mock.MatchedBy(func(filter interface{}) bool {
			f, ok := filter.(bson.M)
			return ok && f["pendingUsers.uid"] == first
		}),
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			pull, pok := u["$pull"].(bson.M)
			set, sok := u["$set"].(bson.M)
			if !pok || !sok {
				return false
			}
			pulled, ok := pull["pendingUsers"].(bson.M)
			if !ok || pulled["uid"] != first {
				return false
			}
			up, ok := set["totalUserPieces."+first].(models.UserPieces)
			return ok && up.DisplayName == "Kim" && up.Pieces == 0
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	env.userConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/pending/"+first+"/approve", "", ownerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex(), "user_id": first})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.ApprovePendingUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "approved successfully")
	env.missionConn.AssertExpectations(t)
}

func TestEntity_RejectPendingUserHandlerRacedIsNotFound(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID().Hex()
	pendingID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:           entityID,
		OwnerUserID:  ownerID,
		PendingUsers: []models.PendingUser{{UID: pendingID, DisplayName: "Kim"}},
	})

	// a concurrent approve or withdrawal emptied the queue between the read
	// and the guarded update
	env.missionConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/pending/"+pendingID+"/reject", "", ownerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex(), "user_id": pendingID})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.RejectPendingUserHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no pending join request")
}

func TestEntity_EntityHandlerPrivateRedactsForNonMember(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	memberID := primitive.NewObjectID().Hex()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:          entityID,
		Name:        "Secret Shore Cleanup",
		IsPrivate:   true,
		OwnerUserID: memberID,
		TotalPieces: 120,
		TotalUserPieces: map[string]models.UserPieces{
			memberID: {DisplayName: "Sam", Pieces: 120},
		},
		PendingUsers: []models.PendingUser{{UID: "someone", DisplayName: "Kim"}},
	})

	req := authedRequest("GET", "/api/v1/missions/"+entityID.Hex(), "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.EntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	// aggregates stay visible, the roster and queue do not
	assert.Contains(t, rr.Body.String(), `"totalPieces":120`)
	assert.NotContains(t, rr.Body.String(), "totalUserPieces")
	assert.NotContains(t, rr.Body.String(), "pendingUsers")
}

func TestEntity_EntityHandlerPrivateShowsRosterToMember(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	memberID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID:        entityID,
		IsPrivate: true,
		TotalUserPieces: map[string]models.UserPieces{
			memberID: {DisplayName: "Sam", Pieces: 7},
		},
	})

	req := authedRequest("GET", "/api/v1/missions/"+entityID.Hex(), "", memberID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.EntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "totalUserPieces")
}

func TestEntity_UpdateEntityHandlerRejectsCounterEdits(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	req := authedRequest("PATCH", "/api/v1/missions/"+entityID.Hex(), `{"totalPieces": 9999}`, callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.UpdateEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "not editable")
	env.missionConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_JoinEntityHandlerInvitePromotesPendingUser(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	// the caller requested to join earlier and now holds an invite link
	env.expectEntity(models.Entity{
		ID:           entityID,
		IsPrivate:    true,
		PendingUsers: []models.PendingUser{{UID: callerID, DisplayName: "Sam"}},
	})
	env.expectCallerUser("Sam")

	inviteToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"entityId": entityID.Hex(),
		"kind":     handlers.KindMission,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	assert.NoError(t, err)

	// the double-entry guard excludes pending users, so the direct update
	// matches nothing
	env.missionConn.On("UpdateOne", mock.Anything,
		mock.MatchedBy(func(filter interface{}) bool {
			f, ok := filter.(bson.M)
			if !ok {
				return false
			}
			_, hasMemberGuard := f["totalUserPieces."+callerID]
			return hasMemberGuard
		}),
		mock.Anything,
	).Return(&mongo.UpdateResult{MatchedCount: 0}, nil)

	// the promotion pulls the pending entry and seeds the member entry in one
	// update, the same shape as an owner approval
	env.missionConn.On("UpdateOne", mock.Anything,
		mock.MatchedBy(func(filter interface{}) bool {
			f, ok := filter.(bson.M)
			return ok && f["_id"] == entityID && f["pendingUsers.uid"] == callerID
		}),
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			pull, pok := u["$pull"].(bson.M)
			set, sok := u["$set"].(bson.M)
			if !pok || !sok {
				return false
			}
			pulled, ok := pull["pendingUsers"].(bson.M)
			if !ok || pulled["uid"] != callerID {
				return false
			}
			up, ok := set["totalUserPieces."+callerID].(models.UserPieces)
			return ok && up.DisplayName == "Sam" && up.Pieces == 0
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	env.userConn.On("UpdateOne", mock.Anything, mock.Anything,
		mock.MatchedBy(func(update interface{}) bool {
			u, ok := update.(bson.M)
			if !ok {
				return false
			}
			addToSet, ok := u["$addToSet"].(bson.M)
			return ok && addToSet["user.missionIds"] == entityID.Hex()
		}),
	).Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	body := `{"inviteToken": "` + inviteToken + `"}`
	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/join", body, callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.JoinEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "joined mission successfully")
	env.missionConn.AssertExpectations(t)
	env.userConn.AssertExpectations(t)
}

func TestEntity_LeaveEntityHandlerStoreFaultIsInternal(t *testing.T) {
	env := newEntityTestEnv()
	entityID := primitive.NewObjectID()
	callerID := primitive.NewObjectID().Hex()

	env.expectEntity(models.Entity{
		ID: entityID,
		TotalUserPieces: map[string]models.UserPieces{
			callerID: {DisplayName: "Sam", Pieces: 17},
		},
	})

	// either half of the dual mutation failing fails the whole leave, a retry
	// is safe because both deletes are idempotent
	env.missionConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("mocked-error"))
	env.userConn.On("UpdateOne", mock.Anything, mock.Anything, mock.Anything).
		Return(&mongo.UpdateResult{MatchedCount: 1, ModifiedCount: 1}, nil)

	req := authedRequest("POST", "/api/v1/missions/"+entityID.Hex()+"/leave", "", callerID)
	req = mux.SetURLVars(req, map[string]string{"entity_id": entityID.Hex()})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.LeaveEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to leave mission")
}

func TestEntity_CreateEntityHandlerInsertFaultIsInternal(t *testing.T) {
	env := newEntityTestEnv()
	callerID := primitive.NewObjectID().Hex()

	env.expectCallerUser("Sam")
	env.missionConn.On("InsertOne", mock.Anything, mock.Anything).
		Return(nil, errors.New("mocked-error"))

	req := authedRequest("POST", "/api/v1/missions", `{"name": "River Sweep"}`, callerID)

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.CreateEntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "failed to create mission")
	// no membership record may be written for an entity that was never stored
	env.userConn.AssertNotCalled(t, "UpdateOne", mock.Anything, mock.Anything, mock.Anything)
}

func TestEntity_EntityHandlerBadID(t *testing.T) {
	env := newEntityTestEnv()

	req := authedRequest("GET", "/api/v1/missions/1234", "", primitive.NewObjectID().Hex())
	req = mux.SetURLVars(req, map[string]string{"entity_id": "1234"})

	rr := httptest.NewRecorder()
	http.HandlerFunc(env.handler.EntityHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	expected := `{"response": "failed to get objectID from Hex, the provided hex string is not a valid ObjectID"}`
	assert.Equal(t, expected, rr.Body.String())
}
