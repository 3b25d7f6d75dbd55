// Package auth loads Google OAuth2 credentials for the Gmail service.
//
// It reads credentials.json and a token.json in the google-auth
// (authorized-user) format, so tokens minted by other Google tooling work
// without re-authentication.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes needed to read messages and clear the UNREAD label.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
}

const expiryLayout = "2006-01-02T15:04:05.999999Z"

// storedToken is the token.json layout written by google-auth.
type storedToken struct {
	Token        string   `json:"token"`
	RefreshToken string   `json:"refresh_token"`
	TokenURI     string   `json:"token_uri"`
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	Scopes       []string `json:"scopes"`
	Expiry       string   `json:"expiry"`
}

// TokenPath returns tokenPath, or token.json next to credentialsPath when
// tokenPath is empty.
func TokenPath(credentialsPath, tokenPath string) string {
	if tokenPath == "" {
		return filepath.Join(filepath.Dir(credentialsPath), "token.json")
	}
	return tokenPath
}

// LoadGmailService returns an authenticated Gmail API service.
func LoadGmailService(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*gmail.Service, error) {
	client, err := httpClient(ctx, credentialsPath, TokenPath(credentialsPath, tokenPath), logger)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func httpClient(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*http.Client, error) {
	config, err := loadOAuthConfig(credentialsPath)
	if err != nil {
		return nil, err
	}

	token, err := loadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s: %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}

	if fresh.AccessToken != token.AccessToken {
		if err := saveToken(tokenPath, fresh, config); err != nil && logger != nil {
			logger.Warn("could not save refreshed token", zap.String("path", tokenPath), zap.Error(err))
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

func loadOAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}

	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return config, nil
}

func loadToken(tokenPath string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	// google-auth writes ISO 8601 with microseconds.
	var expiry time.Time
	if st.Expiry != "" {
		for _, layout := range []string{expiryLayout, time.RFC3339Nano} {
			if t, err := time.Parse(layout, st.Expiry); err == nil {
				expiry = t
				break
			}
		}
	}

	return &oauth2.Token{
		AccessToken:  st.Token,
		RefreshToken: st.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

func saveToken(tokenPath string, token *oauth2.Token, config *oauth2.Config) error {
	st := storedToken{
		Token:        token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenURI:     config.Endpoint.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       Scopes,
		Expiry:       token.Expiry.UTC().Format(expiryLayout),
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(tokenPath, data, 0o600)
}
