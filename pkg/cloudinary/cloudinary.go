package cloudinary

import (
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/rs/zerolog"
)

// Config contains the credentials of the Cloudinary account hosting problem images.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Service resolves problem image references into delivery URLs.
type Service struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary service instance.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	return &Service{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

// ResolveImage turns a stored image reference into a URL. Absolute URLs are
// returned unchanged; anything else is treated as a public id.
func (s *Service) ResolveImage(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", fmt.Errorf("image reference is empty")
	}
	if IsAbsoluteURL(ref) {
		return ref, nil
	}

	publicID := strings.TrimPrefix(ref, "/")
	if s.folder != "" && !strings.HasPrefix(publicID, s.folder+"/") {
		publicID = s.folder + "/" + publicID
	}

	image, err := s.client.Image(publicID)
	if err != nil {
		return "", fmt.Errorf("build image asset: %w", err)
	}

	url, err := image.String()
	if err != nil {
		return "", fmt.Errorf("render image url: %w", err)
	}

	s.logger.Debug().Str("public_id", publicID).Msg("resolved problem image")
	return url, nil
}

// IsAbsoluteURL reports whether ref already points somewhere.
func IsAbsoluteURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") || strings.HasPrefix(lower, "data:")
}
