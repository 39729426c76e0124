package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

var errNoCredentials = errors.New("missing Google credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS, or GOOGLE_OAUTH_CLIENT_* with GOOGLE_OAUTH_TOKEN_*)")

// envBytes returns the inline value of jsonKey, or the contents of the file
// named by fileKey. Both empty yields nil.
func envBytes(jsonKey, fileKey string) ([]byte, error) {
	if v := strings.TrimSpace(os.Getenv(jsonKey)); v != "" {
		return []byte(v), nil
	}
	path := strings.TrimSpace(os.Getenv(fileKey))
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileKey, err)
	}
	return data, nil
}

// OAuthConfigFromEnv loads the OAuth client from GOOGLE_OAUTH_CLIENT_JSON or
// GOOGLE_OAUTH_CLIENT_FILE. It returns nil without error when neither is set.
func OAuthConfigFromEnv() (*oauth2.Config, error) {
	b, err := envBytes("GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE")
	if err != nil || b == nil {
		return nil, err
	}
	cfg, err := googleoauth.ConfigFromJSON(b, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("oauth client config: %w", err)
	}
	return cfg, nil
}

// clientOptions prefers a service account and falls back to an OAuth user
// token produced by talky-oauth-init.
func clientOptions(ctx context.Context) ([]goption.ClientOption, error) {
	sa, err := envBytes("GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE")
	if err != nil {
		return nil, err
	}
	if sa == nil {
		sa, err = envBytes("", "GOOGLE_APPLICATION_CREDENTIALS")
		if err != nil {
			return nil, err
		}
	}
	if sa != nil {
		slog.InfoContext(ctx, "Using service account credentials for Google Sheets")
		return []goption.ClientOption{
			goption.WithCredentialsJSON(sa),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil
	}

	cfg, err := OAuthConfigFromEnv()
	if err != nil {
		return nil, err
	}
	tokJSON, err := envBytes("GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE")
	if err != nil {
		return nil, err
	}
	if cfg == nil || tokJSON == nil {
		return nil, errNoCredentials
	}
	var tok oauth2.Token
	if err := json.Unmarshal(tokJSON, &tok); err != nil {
		return nil, fmt.Errorf("decode oauth token: %w", err)
	}
	slog.InfoContext(ctx, "Using OAuth user credentials for Google Sheets")
	return []goption.ClientOption{goption.WithTokenSource(cfg.TokenSource(ctx, &tok))}, nil
}
