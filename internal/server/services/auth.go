package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/auth"
	"github.com/dmitrijs2005/apikit/internal/server/config"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/passwords"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/repomanager"
)

// Mailer sends the account emails. *mail.Service implements it.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, name, link string) error
	SendVerification(ctx context.Context, to, name, link string) error
}

// LoginResult is what a successful credential check hands back.
type LoginResult struct {
	User   *models.User
	Tokens *TokenPair
}

// PasswordResetConfirm is the input of ConfirmPasswordReset.
type PasswordResetConfirm struct {
	UID                string
	Token              string
	NewPassword        string
	NewPasswordConfirm string
}

// credentialHasher is the part of passwords.Hasher the auth flows use.
type credentialHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	DummyVerify(password string)
}

// AuthService provides authentication-related operations:
//   - Login: verify credentials and mint a token pair
//   - Refresh: rotate refresh tokens, blacklisting the old one
//   - Verify / Logout: token inspection and revocation
//   - password reset and email verification links
type AuthService struct {
	tokenIssuer
	db           *sql.DB
	hasher       credentialHasher
	mailer       Mailer
	resetTokens  *auth.TokenGenerator
	verifyTokens *auth.TokenGenerator
	frontendURL  string
	debug        bool
	logger       logging.Logger
	now          func() time.Time
}

// NewAuthService constructs an AuthService using repositories and server config.
func NewAuthService(db *sql.DB, m repomanager.RepositoryManager, h *passwords.Hasher, mailer Mailer, cfg *config.Config, l logging.Logger) *AuthService {
	secret := []byte(cfg.SecretKey)
	return &AuthService{
		tokenIssuer: tokenIssuer{
			repomanager:                  m,
			jwtSecret:                    secret,
			accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
			refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		},
		db:           db,
		hasher:       h,
		mailer:       mailer,
		resetTokens:  auth.NewTokenGenerator(auth.ResetKeySalt, secret, cfg.PasswordResetTimeout),
		verifyTokens: auth.NewTokenGenerator(auth.VerifyKeySalt, secret, cfg.PasswordResetTimeout),
		frontendURL:  cfg.FrontendURL,
		debug:        cfg.Debug,
		logger:       l.With("module", "auth_service"),
		now:          time.Now,
	}
}

// Authenticate checks the credentials. Unknown emails and wrong passwords
// both yield common.ErrorUnauthorized; a disabled account yields
// common.ErrInactiveUser.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	repo := s.repomanager.Users(s.db)

	user, err := repo.GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.hasher.DummyVerify(password)
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		// unusable hash counts as a wrong password
		s.hasher.DummyVerify(password)
		s.logger.Warn(ctx, "unusable password hash", "user_id", user.ID, "error", err)
		return nil, common.ErrorUnauthorized
	}
	if !ok {
		return nil, common.ErrorUnauthorized
	}
	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}
	return user, nil
}

// Login authenticates, stamps last_login and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}

	at := s.now().UTC()
	pair, err := dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		if err := s.repomanager.Users(tx).UpdateLastLogin(ctx, user.ID, at); err != nil {
			return nil, fmt.Errorf("error updating last login: %w", err)
		}
		return s.issuePair(ctx, tx, user.ID)
	})
	if err != nil {
		return nil, err
	}

	user.LastLogin = &at
	return &LoginResult{User: user, Tokens: pair}, nil
}

// Refresh validates a refresh token, blacklists it and returns a fresh
// pair, all in one transaction. Token failures are returned as the
// common token errors.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseToken(refreshToken, s.jwtSecret, auth.TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	return dbx.WithTxValue(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*TokenPair, error) {
		repo := s.repomanager.Tokens(tx)

		blacklisted, err := repo.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("error checking blacklist: %w", err)
		}
		if blacklisted {
			return nil, common.ErrTokenBlacklisted
		}

		user, err := s.repomanager.Users(tx).GetByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, common.ErrInvalidToken
			}
			return nil, fmt.Errorf("error searching user: %w", err)
		}
		if !user.IsActive {
			return nil, common.ErrInactiveUser
		}

		ot, err := outstanding(ctx, repo, claims, refreshToken)
		if err != nil {
			return nil, fmt.Errorf("error recording refresh token: %w", err)
		}
		// a concurrent refresh may have rotated the token since the check
		if err := repo.Blacklist(ctx, ot.ID); err != nil {
			if errors.Is(err, common.ErrTokenBlacklisted) {
				return nil, err
			}
			return nil, fmt.Errorf("error blacklisting refresh token: %w", err)
		}

		return s.issuePair(ctx, tx, user.ID)
	})
}

// Verify checks a token of either type. Blacklisted refresh tokens fail.
func (s *AuthService) Verify(ctx context.Context, token string) error {
	claims, err := auth.ParseUntyped(token, s.jwtSecret)
	if err != nil {
		return err
	}
	if claims.TokenType != auth.TokenTypeRefresh {
		return nil
	}

	blacklisted, err := s.repomanager.Tokens(s.db).IsBlacklisted(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("error checking blacklist: %w", err)
	}
	if blacklisted {
		return common.ErrTokenBlacklisted
	}
	return nil
}

// Logout blacklists the given refresh token. An empty token is a no-op;
// blacklisting twice is not an error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := auth.ParseToken(refreshToken, s.jwtSecret, auth.TokenTypeRefresh)
	if err != nil {
		return err
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Tokens(tx)
		ot, err := outstanding(ctx, repo, claims, refreshToken)
		if err != nil {
			return fmt.Errorf("error recording refresh token: %w", err)
		}
		if err := repo.Blacklist(ctx, ot.ID); err != nil && !errors.Is(err, common.ErrTokenBlacklisted) {
			return fmt.Errorf("error blacklisting refresh token: %w", err)
		}
		return nil
	})
}

// UserFromAccessToken resolves the account behind a bearer token.
func (s *AuthService) UserFromAccessToken(ctx context.Context, token string) (*models.User, error) {
	userID, err := auth.GetUserIDFromToken(token, s.jwtSecret)
	if err != nil {
		return nil, err
	}

	user, err := s.repomanager.Users(s.db).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidToken
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrInactiveUser
	}
	return user, nil
}

// RequestPasswordReset mails a reset link when the email belongs to an
// account. The link is returned only in debug mode; unknown emails and
// mail failures are indistinguishable from success to the caller.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	user, err := s.repomanager.Users(s.db).GetByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("error searching user: %w", err)
	}

	link := accountLink(s.frontendURL, resetPath, s.resetTokens, user)
	if err := s.mailer.SendPasswordReset(ctx, user.Email, user.FullName(), link); err != nil {
		s.logger.Error(ctx, "error sending password reset email", "user_id", user.ID, "error", err)
	}

	if !s.debug {
		return "", nil
	}
	return link, nil
}

// ConfirmPasswordReset sets a new password from a reset link. It returns
// a ValidationError for mismatched passwords, common.ErrInvalidUID for a
// bad or unknown uid and common.ErrInvalidToken for a bad token.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, in PasswordResetConfirm) error {
	if in.NewPassword != in.NewPasswordConfirm {
		return apierr.FieldError("new_password_confirm", msgPasswordMismatch)
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := s.userFromUID(ctx, repo.GetByID, in.UID)
		if err != nil {
			return err
		}
		if !s.resetTokens.CheckToken(user, in.Token) {
			return common.ErrInvalidToken
		}

		hash, err := s.hasher.Hash(in.NewPassword)
		if err != nil {
			return fmt.Errorf("error hashing password: %w", err)
		}
		if err := repo.SetPassword(ctx, user.ID, hash); err != nil {
			return fmt.Errorf("error setting password: %w", err)
		}
		return nil
	})
}

// VerifyEmail marks the address behind a verification link as verified.
func (s *AuthService) VerifyEmail(ctx context.Context, uid, token string) error {
	repo := s.repomanager.Users(s.db)

	user, err := s.userFromUID(ctx, repo.GetByID, uid)
	if err != nil {
		return err
	}
	if !s.verifyTokens.CheckToken(user, token) {
		return common.ErrInvalidToken
	}
	if err := repo.SetEmailVerified(ctx, user.ID); err != nil {
		return fmt.Errorf("error verifying email: %w", err)
	}
	return nil
}

func (s *AuthService) userFromUID(ctx context.Context, get func(context.Context, string) (*models.User, error), uid string) (*models.User, error) {
	id, err := auth.DecodeUID(uid)
	if err != nil {
		return nil, err
	}
	user, err := get(ctx, id)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidUID
		}
		return nil, fmt.Errorf("error searching user: %w", err)
	}
	return user, nil
}
