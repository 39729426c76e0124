package google

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testOAuthClient = `{"installed":{"client_id":"id.apps.googleusercontent.com","client_secret":"secret","auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token","redirect_uris":["http://localhost"]}}`

func clearCredentialEnv(t *testing.T) {
	for _, k := range []string{
		"GOOGLE_SERVICE_ACCOUNT_JSON", "GOOGLE_SERVICE_ACCOUNT_FILE", "GOOGLE_APPLICATION_CREDENTIALS",
		"GOOGLE_OAUTH_CLIENT_JSON", "GOOGLE_OAUTH_CLIENT_FILE", "GOOGLE_OAUTH_TOKEN_JSON", "GOOGLE_OAUTH_TOKEN_FILE",
	} {
		t.Setenv(k, "")
	}
}

func TestClientOptionsWithoutCredentials(t *testing.T) {
	clearCredentialEnv(t)
	if _, err := clientOptions(context.Background()); !errors.Is(err, errNoCredentials) {
		t.Fatalf("clientOptions() error = %v, want errNoCredentials", err)
	}
}

func TestClientOptionsServiceAccount(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("GOOGLE_SERVICE_ACCOUNT_JSON", `{"type":"service_account"}`)
	opts, err := clientOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 2 {
		t.Fatalf("got %d options, want 2", len(opts))
	}
}

func TestClientOptionsOAuthToken(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token.json")
	if err := os.WriteFile(tokenPath, []byte(`{"access_token":"a","refresh_token":"r","token_type":"Bearer"}`), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)
	t.Setenv("GOOGLE_OAUTH_TOKEN_FILE", tokenPath)

	opts, err := clientOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(opts) != 1 {
		t.Fatalf("got %d options, want 1", len(opts))
	}
}

func TestOAuthConfigFromEnv(t *testing.T) {
	clearCredentialEnv(t)
	cfg, err := OAuthConfigFromEnv()
	if err != nil || cfg != nil {
		t.Fatalf("unset env: cfg=%v err=%v", cfg, err)
	}

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", testOAuthClient)
	cfg, err = OAuthConfigFromEnv()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ClientID != "id.apps.googleusercontent.com" {
		t.Fatalf("ClientID = %q", cfg.ClientID)
	}

	t.Setenv("GOOGLE_OAUTH_CLIENT_JSON", "")
	t.Setenv("GOOGLE_OAUTH_CLIENT_FILE", filepath.Join(t.TempDir(), "missing.json"))
	if _, err := OAuthConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing client file")
	}
}
