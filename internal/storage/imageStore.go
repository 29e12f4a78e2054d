package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog/log"
)

const defaultFolder = "gbconnect/services"

var ErrNotConfigured = errors.New("image storage is not configured")

// ImageStore persists uploaded images and returns their public URL.
type ImageStore interface {
	Upload(ctx context.Context, file io.Reader, publicID string) (string, error)
}

type cloudinaryStore struct {
	cld          *cloudinary.Cloudinary
	folder       string
	uploadPreset string
}

// NewImageStore builds a Cloudinary-backed store from CLOUDINARY_* variables. It returns
// ErrNotConfigured when credentials are missing.
func NewImageStore() (ImageStore, error) {
	cloudName := os.Getenv("CLOUDINARY_CLOUD_NAME")
	apiKey := os.Getenv("CLOUDINARY_API_KEY")
	apiSecret := os.Getenv("CLOUDINARY_API_SECRET")
	if cloudName == "" || apiKey == "" || apiSecret == "" {
		return nil, ErrNotConfigured
	}

	cld, err := cloudinary.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise cloudinary: %w", err)
	}

	folder := os.Getenv("CLOUDINARY_FOLDER")
	if folder == "" {
		folder = defaultFolder
	}

	log.Info().Str("cloud", cloudName).Str("folder", folder).Msg("Cloudinary image storage initialized")
	return &cloudinaryStore{
		cld:          cld,
		folder:       folder,
		uploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
	}, nil
}

func (s *cloudinaryStore) Upload(ctx context.Context, file io.Reader, publicID string) (string, error) {
	params := uploader.UploadParams{
		PublicID:       publicID,
		Folder:         s.folder,
		UploadPreset:   s.uploadPreset,
		Transformation: "c_limit,w_1600,h_1200",
	}

	resp, err := s.cld.Upload.Upload(ctx, file, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	if resp.Error.Message != "" {
		return "", fmt.Errorf("failed to upload image: %s", resp.Error.Message)
	}
	return resp.SecureURL, nil
}
