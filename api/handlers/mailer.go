package handlers

import (
	"context"
	"fmt"
	"time"

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

// Mailer sends transactional emails for admission decisions. A nil Mailer
// disables email entirely (local development and tests).
type Mailer struct {
	APIKey string
	From   string
	UDB    databases.UserDatabase
}

// NewMailer returns nil when sendgrid is not configured
func NewMailer(conf *config.Config, udb databases.UserDatabase) *Mailer {
	if conf.SendgridAPIKey == "" {
		zap.S().Warn("SENDGRID_API_KEY not set, admission emails disabled")
		return nil
	}
	return &Mailer{APIKey: conf.SendgridAPIKey, From: conf.EmailFrom, UDB: udb}
}

// SendAdmissionDecision emails a user that their join request was approved or
// rejected. Fire and forget, the admission itself already committed.
func (m *Mailer) SendAdmissionDecision(userID, kind, entityName string, approved bool) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		uID, err := primitive.ObjectIDFromHex(userID)
		if err != nil {
			zap.S().Warnw("admission email skipped, malformed user id", "userID", userID)
			return
		}
		user := models.User{}
		if err := m.UDB.FindOne(ctx, bson.M{"_id": uID}).Decode(&user); err != nil || user.Details.Email == "" {
			zap.S().Warnw("admission email skipped, no email on file", "userID", userID, "error", err)
			return
		}

		var subject, body string
		if approved {
			subject = fmt.Sprintf("You're in! Your request to join %q was approved", entityName)
			body = fmt.Sprintf("Hi %s,\n\nYour request to join the %s %q was approved. Every piece you log from here on counts toward the group total.\n\nGet out there!",
				user.Details.DisplayName, kind, entityName)
		} else {
			subject = fmt.Sprintf("Your request to join %q was declined", entityName)
			body = fmt.Sprintf("Hi %s,\n\nThe owner of the %s %q declined your join request. You can still log litter on your own map, or ask the owner for an invite link.",
				user.Details.DisplayName, kind, entityName)
		}

		from := mail.NewEmail("CleanStreak", m.From)
		to := mail.NewEmail(user.Details.DisplayName, user.Details.Email)
		message := mail.NewSingleEmail(from, subject, to, body, templates.RenderGenericEmail(subject, body))
		response, err := sendgrid.NewSendClient(m.APIKey).Send(message)
		if err != nil {
			zap.S().Errorw("failed to send admission email", "userID", userID, "error", err)
			return
		}
		if response.StatusCode >= 400 {
			zap.S().Errorw("sendgrid returned error status", "status", response.StatusCode, "body", response.Body)
		}
	}()
}
