package gdrive

import (
	"context"
	"errors"
	"fmt"

	"github.com/openmined/cloudsync/internal/version"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

var ErrNoCredentials = errors.New("gdrive: credentials file, refresh token or access token required")

type Config struct {
	// CredentialsFile is a service account or authorized user JSON key.
	CredentialsFile string

	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	TokenURL     string

	// Endpoint overrides the Drive API base path, e.g. for tests.
	Endpoint string
	RootID   string
	DryRun   bool
}

func newService(ctx context.Context, cfg *Config) (*drive.Service, error) {
	opts := []option.ClientOption{
		option.WithUserAgent(version.UserAgent()),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile), option.WithScopes(drive.DriveScope))
	case cfg.RefreshToken != "":
		endpoint := google.Endpoint
		if cfg.TokenURL != "" {
			endpoint.TokenURL = cfg.TokenURL
		}
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{drive.DriveScope},
		}
		token := &oauth2.Token{AccessToken: cfg.AccessToken, RefreshToken: cfg.RefreshToken}
		opts = append(opts, option.WithTokenSource(conf.TokenSource(ctx, token)))
	case cfg.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})))
	default:
		return nil, ErrNoCredentials
	}

	service, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create drive service: %w", err)
	}
	return service, nil
}
