// Package google provides Google Calendar OAuth and API integration.
package google

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/dtorcivia/daykeeper/internal/config"
	"github.com/dtorcivia/daykeeper/internal/crypto"
	"github.com/dtorcivia/daykeeper/internal/database"
	"github.com/dtorcivia/daykeeper/internal/util"
)

const calendarScope = "https://www.googleapis.com/auth/calendar"

// refreshBuffer is the window before expiry in which a token counts as stale.
const refreshBuffer = 5 * time.Minute

// OAuthManager handles per-user Google OAuth token management. It is the
// credential store the gateway factory is built on: one manager per process,
// one gateway per (user, operation).
type OAuthManager struct {
	config    *oauth2.Config
	db        *database.DB
	encryptor *crypto.Encryptor

	mu     sync.Mutex
	cached map[string]*oauth2.Token // userID -> valid access token
}

// NewOAuthManager creates a new OAuth manager.
func NewOAuthManager(cfg *config.Config, db *database.DB, encryptor *crypto.Encryptor) *OAuthManager {
	oauthConfig := &oauth2.Config{
		ClientID:     cfg.Google.ClientID,
		ClientSecret: cfg.Google.ClientSecret,
		RedirectURL:  cfg.Google.RedirectURI,
		Scopes:       cfg.Google.Scopes,
		Endpoint:     googleoauth.Endpoint,
	}

	return &OAuthManager{
		config:    oauthConfig,
		db:        db,
		encryptor: encryptor,
		cached:    make(map[string]*oauth2.Token),
	}
}

// AuthCodeURL returns the OAuth authorization URL for the linking flow.
func (m *OAuthManager) AuthCodeURL(state string) string {
	return m.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode exchanges an authorization code for tokens and stores them
// against the user.
func (m *OAuthManager) ExchangeCode(ctx context.Context, userID, code string) error {
	token, err := m.config.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code: %w", err)
	}

	if err := m.saveToken(ctx, userID, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}

	m.mu.Lock()
	m.cached[userID] = token
	m.mu.Unlock()

	util.Info("Google account linked", "user_id", userID)
	return nil
}

// TokenFor returns a valid access token for the user, refreshing when the
// cached or stored token is stale. A missing credential surfaces as an
// AuthError.
func (m *OAuthManager) TokenFor(ctx context.Context, userID string) (*oauth2.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cached, ok := m.cached[userID]; ok {
		if time.Now().Add(refreshBuffer).Before(cached.Expiry) {
			return cached, nil
		}
	}

	token, err := m.loadToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	if token.Expiry.Before(time.Now().Add(refreshBuffer)) {
		token, err = m.refreshAndPersist(ctx, userID, token)
		if err != nil {
			return nil, err
		}
	}

	m.cached[userID] = token
	return token, nil
}

// ForceRefresh discards any cached access token and refreshes now. Used when
// the provider rejects a token the manager still considered fresh.
func (m *OAuthManager) ForceRefresh(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.cached, userID)

	token, err := m.loadToken(ctx, userID)
	if err != nil {
		return err
	}

	// Drop the access token so the token source must hit the refresh flow
	token.AccessToken = ""
	token.Expiry = time.Now().Add(-time.Hour)

	token, err = m.refreshAndPersist(ctx, userID, token)
	if err != nil {
		return err
	}

	m.cached[userID] = token
	return nil
}

// refreshAndPersist refreshes a token and saves it if the provider rotated
// the refresh credential. Callers must hold m.mu.
func (m *OAuthManager) refreshAndPersist(ctx context.Context, userID string, token *oauth2.Token) (*oauth2.Token, error) {
	newToken, err := m.config.TokenSource(ctx, token).Token()
	if err != nil {
		util.Error("OAuth token refresh failed", "user_id", userID, "error", err)
		return nil, &AuthError{Reason: "token refresh failed", Err: err}
	}

	if newToken.RefreshToken == "" {
		newToken.RefreshToken = token.RefreshToken
	}

	if newToken.RefreshToken != token.RefreshToken {
		if err := m.saveToken(ctx, userID, newToken); err != nil {
			// We still hold a valid token in memory; log and continue
			util.Error("Failed to persist rotated refresh token", "user_id", userID, "error", err)
		}
	}

	return newToken, nil
}

// ClientFor returns an HTTP client carrying fresh OAuth credentials for the
// user.
func (m *OAuthManager) ClientFor(ctx context.Context, userID string) (*http.Client, error) {
	token, err := m.TokenFor(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.config.Client(ctx, token), nil
}

// EnsureCalendarAccess verifies the user has a linked account with calendar
// scope consent. Unknown scopes (older rows) are left for the provider to
// reject.
func (m *OAuthManager) EnsureCalendarAccess(ctx context.Context, userID string) error {
	var scopes sql.NullString
	err := m.db.QueryRowContext(ctx, `
		SELECT scopes FROM oauth_tokens WHERE user_id = ?
	`, userID).Scan(&scopes)

	if err == sql.ErrNoRows {
		return &AuthError{Reason: "no linked Google account"}
	}
	if err != nil {
		return fmt.Errorf("database error: %w", err)
	}

	if scopes.Valid && scopes.String != "" && !strings.Contains(scopes.String, calendarScope) {
		return &PermissionError{MissingScope: calendarScope}
	}

	return nil
}

// HasToken checks whether the user has a stored credential.
func (m *OAuthManager) HasToken(ctx context.Context, userID string) bool {
	var count int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM oauth_tokens WHERE user_id = ?
	`, userID).Scan(&count)

	return err == nil && count > 0
}

// DeleteToken removes the user's stored credential.
func (m *OAuthManager) DeleteToken(ctx context.Context, userID string) error {
	m.mu.Lock()
	delete(m.cached, userID)
	m.mu.Unlock()

	_, err := m.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id = ?`, userID)
	return err
}

// saveToken stores the refresh token (encrypted) and granted scopes.
func (m *OAuthManager) saveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	if token.RefreshToken == "" {
		return fmt.Errorf("no refresh token to save")
	}

	encrypted, err := m.encryptor.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}

	scopes := ""
	if extra := token.Extra("scope"); extra != nil {
		if s, ok := extra.(string); ok {
			scopes = s
		}
	}

	_, err = m.db.ExecContext(ctx, `
		INSERT INTO oauth_tokens (user_id, refresh_token_enc, scopes, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			refresh_token_enc = excluded.refresh_token_enc,
			scopes = CASE WHEN excluded.scopes != '' THEN excluded.scopes ELSE oauth_tokens.scopes END,
			updated_at = datetime('now')
	`, userID, encrypted, scopes)

	return err
}

// loadToken loads the stored refresh credential for a user.
func (m *OAuthManager) loadToken(ctx context.Context, userID string) (*oauth2.Token, error) {
	var encrypted []byte
	err := m.db.QueryRowContext(ctx, `
		SELECT refresh_token_enc FROM oauth_tokens WHERE user_id = ?
	`, userID).Scan(&encrypted)

	if err == sql.ErrNoRows {
		return nil, &AuthError{Reason: "no linked Google account"}
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	refreshToken, err := m.encryptor.Decrypt(encrypted)
	if err != nil {
		return nil, &AuthError{Reason: "stored credential unreadable", Err: err}
	}

	// Expiry in the past forces a refresh on first use
	return &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour),
	}, nil
}
