package config

import (
	"fmt"
	"net/http"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config holds the project config values, populated from the environment
type Config struct {
	URL              string `envconfig:"DB_URI"`
	DatabaseName     string `envconfig:"DB_NAME"`
	BaseURL          string `envconfig:"BASE_URL"`
	Port             string `envconfig:"PORT" default:"8080"`
	Environment      string `envconfig:"ENVIRONMENT" default:"local"`
	JWTSecret        string `envconfig:"JWT_SECRET"`
	SendgridAPIKey   string `envconfig:"SENDGRID_API_KEY"`
	EmailFrom        string `envconfig:"EMAIL_FROM" default:"no-reply@cleanstreak.app"`
	CloudinaryCloud  string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinarySecret string `envconfig:"CLOUDINARY_API_SECRET"`
	CloudinaryPreset string `envconfig:"CLOUDINARY_UPLOAD_PRESET"`
}

// New sets up all config related services
func New() *Config {
	var conf Config
	if err := envconfig.Process("", &conf); err != nil {
		panic(fmt.Sprintf("failed to process env config: %v", err))
	}

	//setup zap logger and replace default logger
	logger, err := setLogger(conf.Environment)
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	defer logger.Sync()
	_ = zap.ReplaceGlobals(logger)

	return &conf
}

func setLogger(environment string) (*zap.Logger, error) {
	switch environment {
	case "production":
		return zap.NewProduction()
	case "development":
		return zap.NewDevelopment()
	default:
		return zap.NewExample(), nil
	}
}

// ErrorStatus is a useful function that will log, write http headers and body for a
// give message, status code and err
func ErrorStatus(message string, httpStatusCode int, w http.ResponseWriter, err error) {
	zap.S().With(err).Error(message)
	w.WriteHeader(httpStatusCode)
	w.Write([]byte(fmt.Sprintf(`{"response": "%s, %v"}`, message, err)))
}
