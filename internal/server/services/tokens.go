// Package services contains the server-side business logic. AuthService
// covers credentials, the JWT pair lifecycle and the emailed reset and
// verification links; UserService covers account management.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/server/auth"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/tokens"
)

// TokenPair bundles a short-lived access token and a long-lived refresh token.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// tokenIssuer mints token pairs and records every refresh token as
// outstanding so it can later be blacklisted.
type tokenIssuer struct {
	repomanager                  repomanager.RepositoryManager
	jwtSecret                    []byte
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
}

func (t *tokenIssuer) issuePair(ctx context.Context, db dbx.DBTX, userID string) (*TokenPair, error) {
	access, err := auth.GenerateToken(auth.TokenTypeAccess, userID, t.jwtSecret, t.accessTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating access token: %w", err)
	}
	refresh, err := auth.GenerateToken(auth.TokenTypeRefresh, userID, t.jwtSecret, t.refreshTokenValidityDuration)
	if err != nil {
		return nil, fmt.Errorf("error generating refresh token: %w", err)
	}

	err = t.repomanager.Tokens(db).CreateOutstanding(ctx, &models.OutstandingToken{
		JTI:       refresh.JTI,
		UserID:    userID,
		Token:     refresh.Token,
		ExpiresAt: refresh.ExpiresAt,
	})
	if err != nil {
		return nil, fmt.Errorf("error recording refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access.Token, RefreshToken: refresh.Token}, nil
}

// outstanding returns the registry row of a parsed refresh token, creating
// it when the token predates the registry.
func outstanding(ctx context.Context, repo tokens.Repository, claims *auth.Claims, raw string) (*models.OutstandingToken, error) {
	ot, err := repo.GetOutstandingByJTI(ctx, claims.ID)
	if err == nil {
		return ot, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, err
	}

	ot = &models.OutstandingToken{JTI: claims.ID, UserID: claims.UserID, Token: raw}
	if claims.ExpiresAt != nil {
		ot.ExpiresAt = claims.ExpiresAt.Time
	}
	if err := repo.CreateOutstanding(ctx, ot); err != nil {
		return nil, err
	}
	return ot, nil
}
