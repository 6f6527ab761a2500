package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/config"
	"github.com/cleanstreak/litter-map-api/databases"
	"github.com/cleanstreak/litter-map-api/models"
	templates "github.com/cleanstreak/litter-map-api/templates/html"
)

// Scheduler handles periodic background jobs for missions and challenges
type Scheduler struct {
	cron       *cron.Cron
	Missions   databases.EntityDatabase
	Challenges databases.EntityDatabase
	UDB        databases.UserDatabase
	LockDB     databases.SchedulerLockDatabase
	conf       *config.Config
	instanceID string
}

// NewScheduler creates a new scheduler instance
func NewScheduler(
	missionDB databases.EntityDatabase,
	challengeDB databases.EntityDatabase,
	uDB databases.UserDatabase,
	lockDB databases.SchedulerLockDatabase,
	conf *config.Config,
) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Missions:   missionDB,
		Challenges: challengeDB,
		UDB:        uDB,
		LockDB:     lockDB,
		conf:       conf,
		instanceID: instanceID,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() {
	// Send wrap-up summaries for freshly ended missions and challenges daily at 6 AM UTC
	_, err := s.cron.AddFunc("0 6 * * *", s.sendWrapUpSummaries)
	if err != nil {
		zap.S().Errorw("failed to register wrap-up summary job", "error", err)
	}

	// Audit the piece counters hourly. pendingPieces should never go negative,
	// if it does a delta was applied twice and we clamp and log it
	_, err = s.cron.AddFunc("30 * * * *", s.auditCounters)
	if err != nil {
		zap.S().Errorw("failed to register counter audit job", "error", err)
	}

	s.cron.Start()
	zap.S().Info("Mission scheduler started")
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Mission scheduler stopped")
}

// sendWrapUpSummaries emails each owner whose mission or challenge ended in
// the last day a summary of what the group collected
func (s *Scheduler) sendWrapUpSummaries() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Try to acquire distributed lock (10 minute TTL)
	acquired, err := s.LockDB.TryAcquireLock(ctx, "wrap_up_summary_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for wrap-up summary job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Wrap-up summary job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "wrap_up_summary_job", s.instanceID)

	zap.S().Infow("Running wrap-up summary job", "instance", s.instanceID)

	sent := 0
	sent += s.wrapUpEnded(ctx, s.Missions, "mission")
	sent += s.wrapUpEnded(ctx, s.Challenges, "challenge")

	zap.S().Infow("Wrap-up summary job complete", "summariesSent", sent)
}

func (s *Scheduler) wrapUpEnded(ctx context.Context, db databases.EntityDatabase, kind string) int {
	now := time.Now()
	oneDayAgo := now.Add(-24 * time.Hour)

	filter := bson.M{
		"endTime": bson.M{
			"$gt":  primitive.NewDateTimeFromTime(oneDayAgo),
			"$lte": primitive.NewDateTimeFromTime(now),
		},
		"hidden":       bson.M{"$ne": true},
		"wrapUpSentAt": bson.M{"$exists": false},
	}

	ended, err := db.Find(ctx, filter)
	if err != nil {
		zap.S().Errorw("failed to find ended entities", "collection", db.Collection(), "error", err)
		return 0
	}

	sent := 0
	for _, entity := range ended {
		if s.sendWrapUpEmail(ctx, kind, entity) {
			// Mark so the next run does not send the summary again
			_, err := db.UpdateOne(ctx,
				bson.M{"_id": entity.ID},
				bson.M{"$set": bson.M{"wrapUpSentAt": primitive.NewDateTimeFromTime(time.Now())}},
			)
			if err != nil {
				zap.S().Errorw("failed to mark wrap-up as sent",
					"collection", db.Collection(),
					"entityID", entity.ID.Hex(),
					"error", err)
			}
			sent++
		}
	}
	return sent
}

func (s *Scheduler) sendWrapUpEmail(ctx context.Context, kind string, entity models.Entity) bool {
	ownerID, err := primitive.ObjectIDFromHex(entity.OwnerUserID)
	if err != nil {
		zap.S().Warnw("entity has malformed owner id", "entityID", entity.ID.Hex())
		return false
	}

	email, name := s.getUserEmail(ctx, ownerID)
	if email == "" {
		return false
	}

	subject := fmt.Sprintf("Your %s %q has wrapped up", kind, entity.Name)
	htmlContent := templates.RenderWrapUpEmail(name, kind, entity.Name, entity.TotalPieces, len(entity.TotalUserPieces))
	plainText := fmt.Sprintf("Your %s %q ended. %d members collected %d pieces of litter together.",
		kind, entity.Name, len(entity.TotalUserPieces), entity.TotalPieces)

	if err := s.sendEmail(email, name, subject, htmlContent, plainText); err != nil {
		zap.S().Errorw("failed to send wrap-up email",
			"entityID", entity.ID.Hex(),
			"error", err)
		return false
	}
	return true
}

// auditCounters scans for entities whose pendingPieces drifted negative and
// clamps them back to zero
func (s *Scheduler) auditCounters() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	acquired, err := s.LockDB.TryAcquireLock(ctx, "counter_audit_job", s.instanceID, 10*time.Minute)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for counter audit job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("Counter audit job already running on another instance, skipping")
		return
	}
	defer s.LockDB.ReleaseLock(ctx, "counter_audit_job", s.instanceID)

	clamped := 0
	clamped += s.clampNegativePending(ctx, s.Missions)
	clamped += s.clampNegativePending(ctx, s.Challenges)

	if clamped > 0 {
		zap.S().Warnw("Counter audit clamped negative pendingPieces", "entities", clamped)
	}
}

func (s *Scheduler) clampNegativePending(ctx context.Context, db databases.EntityDatabase) int {
	broken, err := db.Find(ctx, bson.M{"pendingPieces": bson.M{"$lt": 0}})
	if err != nil {
		zap.S().Errorw("failed to scan for negative pendingPieces", "collection", db.Collection(), "error", err)
		return 0
	}

	clamped := 0
	for _, entity := range broken {
		zap.S().Warnw("found negative pendingPieces",
			"collection", db.Collection(),
			"entityID", entity.ID.Hex(),
			"pendingPieces", entity.PendingPieces)
		_, err := db.UpdateOne(ctx,
			bson.M{"_id": entity.ID, "pendingPieces": bson.M{"$lt": 0}},
			bson.M{"$set": bson.M{"pendingPieces": 0}},
		)
		if err != nil {
			zap.S().Errorw("failed to clamp pendingPieces",
				"collection", db.Collection(),
				"entityID", entity.ID.Hex(),
				"error", err)
			continue
		}
		clamped++
	}
	return clamped
}

// --- Email Helper Functions ---

func (s *Scheduler) sendEmail(toEmail, toName, subject, htmlContent, plainText string) error {
	from := mail.NewEmail("CleanStreak", s.conf.EmailFrom)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, plainText, htmlContent)
	client := sendgrid.NewSendClient(s.conf.SendgridAPIKey)
	response, err := client.Send(message)
	if err != nil {
		return err
	}
	if response.StatusCode >= 400 {
		zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
	}
	return nil
}

func (s *Scheduler) getUserEmail(ctx context.Context, userID primitive.ObjectID) (email, name string) {
	var user struct {
		Details struct {
			Email       string `bson:"email"`
			DisplayName string `bson:"displayName"`
		} `bson:"user"`
	}
	err := s.UDB.FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil || user.Details.Email == "" {
		return "", ""
	}
	return user.Details.Email, user.Details.DisplayName
}
