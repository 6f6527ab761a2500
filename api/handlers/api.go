package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/api"
	"github.com/cleanstreak/litter-map-api/api/scheduler"
	"github.com/cleanstreak/litter-map-api/config"
	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/models"
)

// App stores the router and db connection, so it can be reused
type App struct {
	Router    *mux.Router
	Config    config.Config
	dbHelper  databases.DatabaseHelper
	scheduler *scheduler.Scheduler
}

// New creates a new mux router and all the routes
func (a *App) New() *mux.Router {
	// setup go-guardian for middleware
	m := api.MiddlewareDB{DB: databases.NewUserDatabase(a.dbHelper)}
	m.SetupGoGuardian()

	r := mux.NewRouter()

	udb := databases.NewUserDatabase(a.dbHelper)
	mdb := databases.NewMissionDatabase(a.dbHelper)
	cdb := databases.NewChallengeDatabase(a.dbHelper)
	pdb := databases.NewPhotoDatabase(a.dbHelper)

	hub := NewLiveHub()
	rec := &Reconciler{Missions: mdb, Challenges: cdb, Live: hub}
	mailer := NewMailer(&a.Config, udb)

	u := User{DB: udb}
	mission := Entity{DB: mdb, UDB: udb, Kind: KindMission, JWTSecret: a.Config.JWTSecret, Mailer: mailer}
	challenge := Entity{DB: cdb, UDB: udb, Kind: KindChallenge, JWTSecret: a.Config.JWTSecret, Mailer: mailer}
	photo := Photo{DB: pdb, UDB: udb, Missions: mdb, Challenges: cdb, Reconciler: rec, Destroyer: NewCloudinaryDestroyer(&a.Config)}
	cloudinaryHandler := CloudinaryHandler{}

	// healthchex
	r.HandleFunc("/health", healthCheckHandler)
	r.HandleFunc("/ws/live", hub.HandleLiveWebSocket)
	r.HandleFunc("/debug/metrics", metricsHandler)

	apiCreate := r.PathPrefix("/api/v1").Subrouter()
	apiCreate.Use(api.MetricsMiddleware)

	apiCreate.Handle("/auth/token", api.Middleware(http.HandlerFunc(m.CreateToken))).Methods("POST")
	apiCreate.Handle("/auth/logout", api.Middleware(http.HandlerFunc(api.RevokeToken))).Methods("DELETE")

	apiCreate.Handle("/user/create-user", http.HandlerFunc(u.UserCreateHandler)).Methods("POST")
	apiCreate.Handle("/user/check-user", http.HandlerFunc(u.UserCheckEmailHandler)).Methods("POST")
	apiCreate.Handle("/user/{user_id}", api.Middleware(http.HandlerFunc(u.UserHandler))).Methods("GET")
	apiCreate.Handle("/user/{user_id}/memberships", api.Middleware(http.HandlerFunc(u.UserMembershipsHandler))).Methods("GET")

	registerEntityRoutes(apiCreate, "missions", mission)
	registerEntityRoutes(apiCreate, "challenges", challenge)

	apiCreate.Handle("/photos", api.Middleware(http.HandlerFunc(photo.CreatePhotoHandler))).Methods("POST")
	apiCreate.Handle("/photos/{photo_id}", api.Middleware(http.HandlerFunc(photo.PhotoHandler))).Methods("GET")
	apiCreate.Handle("/photos/{photo_id}/moderate", api.Middleware(http.HandlerFunc(photo.ModeratePhotoHandler))).Methods("POST")

	apiCreate.Handle("/generate-signature", api.Middleware(http.HandlerFunc(cloudinaryHandler.GenerateSignature))).Methods("POST")

	return r
}

func registerEntityRoutes(r *mux.Router, prefix string, e Entity) {
	r.Handle("/"+prefix, api.Middleware(http.HandlerFunc(e.CreateEntityHandler))).Methods("POST")
	r.Handle("/"+prefix, api.Middleware(http.HandlerFunc(e.EntitiesHandler))).Methods("GET")
	r.Handle("/"+prefix+"/{entity_id}", api.Middleware(http.HandlerFunc(e.EntityHandler))).Methods("GET")
	r.Handle("/"+prefix+"/{entity_id}", api.Middleware(http.HandlerFunc(e.UpdateEntityHandler))).Methods("PATCH")
	r.Handle("/"+prefix+"/{entity_id}", api.Middleware(http.HandlerFunc(e.HideEntityHandler))).Methods("DELETE")
	r.Handle("/"+prefix+"/{entity_id}/join", api.Middleware(http.HandlerFunc(e.JoinEntityHandler))).Methods("POST")
	r.Handle("/"+prefix+"/{entity_id}/leave", api.Middleware(http.HandlerFunc(e.LeaveEntityHandler))).Methods("POST")
	r.Handle("/"+prefix+"/{entity_id}/invite", api.Middleware(http.HandlerFunc(e.InviteTokenHandler))).Methods("GET")
	r.Handle("/"+prefix+"/{entity_id}/pending/{user_id}/approve", api.Middleware(http.HandlerFunc(e.ApprovePendingUserHandler))).Methods("POST")
	r.Handle("/"+prefix+"/{entity_id}/pending/{user_id}/reject", api.Middleware(http.HandlerFunc(e.RejectPendingUserHandler))).Methods("POST")
}

// Initialize is invoked by main to connect with the database and create a router
func (a *App) Initialize() error {

	client, err := databases.NewClient(&a.Config)
	if err != nil {
		// if we fail to create a new database client, then kill the pod
		zap.S().With(err).Error("failed to create new client")
		return err
	}

	a.dbHelper = databases.NewDatabase(&a.Config, client)
	err = client.Connect()
	if err != nil {
		// if we fail to connect to the database, then kill the pod
		zap.S().With(err).Error("failed to connect to database")
		return err
	}
	zap.S().Info("litter-map-api has connected to the database")

	api.InitMetrics(10000, 1*time.Hour)

	a.scheduler = scheduler.NewScheduler(
		databases.NewMissionDatabase(a.dbHelper),
		databases.NewChallengeDatabase(a.dbHelper),
		databases.NewUserDatabase(a.dbHelper),
		databases.NewSchedulerLockDatabase(a.dbHelper),
		&a.Config,
	)
	a.scheduler.Start()

	// initialize api router
	a.initializeRoutes()
	return nil

}

func (a *App) initializeRoutes() {
	a.Router = a.New()
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	b, _ := json.Marshal(models.HealthCheckResponse{
		Alive: true,
	})
	_, _ = io.WriteString(w, string(b))
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"summary": api.GetMetrics().GetSummary(),
		"routes":  api.GetMetrics().GetRouteMetrics(),
	})
}
