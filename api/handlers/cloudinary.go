package handlers

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"go.uber.org/zap"

	"github.com/cleanstreak/litter-map-api/config"
)

// CloudinaryHandler handles Cloudinary related requests
type CloudinaryHandler struct{}

// GenerateSignature generates a signature for Cloudinary uploads so the app
// can upload photos directly without the API secret ever leaving the server
func (c CloudinaryHandler) GenerateSignature(w http.ResponseWriter, r *http.Request) {
	timestamp := strconv.FormatInt(time.Now().Unix(), 10)
	uploadPreset := os.Getenv("CLOUDINARY_UPLOAD_PRESET")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")

	// Create the signature
	h := hmac.New(sha1.New, []byte(apiSecret))
	h.Write([]byte("timestamp=" + timestamp + "&upload_preset=" + uploadPreset))
	signature := hex.EncodeToString(h.Sum(nil))

	// Respond with the timestamp and signature
	response := map[string]string{
		"timestamp": timestamp,
		"signature": signature,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// AssetDestroyer removes an uploaded asset from storage, used when a photo is
// rejected in moderation
type AssetDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

type cloudinaryDestroyer struct {
	cld *cloudinary.Cloudinary
}

// NewCloudinaryDestroyer builds an AssetDestroyer backed by the configured
// Cloudinary account. Returns nil when Cloudinary is not configured, the
// caller treats a nil destroyer as a no-op.
func NewCloudinaryDestroyer(conf *config.Config) AssetDestroyer {
	if conf.CloudinaryCloud == "" || conf.CloudinaryKey == "" || conf.CloudinarySecret == "" {
		zap.S().Warn("cloudinary is not configured, rejected photo assets will not be destroyed")
		return nil
	}
	cld, err := cloudinary.NewFromParams(conf.CloudinaryCloud, conf.CloudinaryKey, conf.CloudinarySecret)
	if err != nil {
		zap.S().Errorw("failed to initialize cloudinary", "error", err)
		return nil
	}
	return &cloudinaryDestroyer{cld: cld}
}

func (d *cloudinaryDestroyer) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	_, err := d.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	return err
}
