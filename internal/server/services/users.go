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
	"github.com/dmitrijs2005/apikit/internal/server/pagination"
	"github.com/dmitrijs2005/apikit/internal/server/passwords"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/apikit/internal/server/storage"
	"github.com/google/uuid"
)

const (
	msgPasswordMismatch = "Password fields didn't match."
	msgEmailTaken       = "user with this Email address already exists."
	msgOldPassword      = "Old password is not correct."
)

// ErrStorageDisabled is returned by picture uploads when no bucket is configured.
var ErrStorageDisabled = errors.New("object storage is disabled")

// ObjectStorage presigns object URLs. *storage.S3Storage implements it.
type ObjectStorage interface {
	PresignPut(ctx context.Context, key string) (string, error)
	PresignGet(ctx context.Context, key string) (string, error)
}

// NewUser is the input of the user factory.
type NewUser struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	IsStaff     bool
	IsSuperuser bool
}

// Registration is a self-service sign-up.
type Registration struct {
	Email           string
	Password        string
	PasswordConfirm string
	FirstName       string
	LastName        string
}

type PasswordChange struct {
	OldPassword        string
	NewPassword        string
	NewPasswordConfirm string
}

// UserPage is one page of a user listing.
type UserPage struct {
	Users    []*models.User
	Count    int
	Number   int
	PageSize int
}

// PictureUpload tells the client where to PUT a new profile picture.
type PictureUpload struct {
	Key       string
	UploadURL string
}

type UserService struct {
	db           *sql.DB
	repomanager  repomanager.RepositoryManager
	hasher       *passwords.Hasher
	mailer       Mailer
	verifyTokens *auth.TokenGenerator
	storage      ObjectStorage
	frontendURL  string
	logger       logging.Logger
	now          func() time.Time
}

// NewUserService constructs a UserService. st may be nil, which disables
// profile picture uploads.
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, h *passwords.Hasher, mailer Mailer, st ObjectStorage, cfg *config.Config, l logging.Logger) *UserService {
	return &UserService{
		db:           db,
		repomanager:  m,
		hasher:       h,
		mailer:       mailer,
		verifyTokens: auth.NewTokenGenerator(auth.VerifyKeySalt, []byte(cfg.SecretKey), cfg.PasswordResetTimeout),
		storage:      st,
		frontendURL:  cfg.FrontendURL,
		logger:       l.With("module", "user_service"),
		now:          time.Now,
	}
}

// CreateUser hashes the password and persists the account. It does not
// run the strength rules; callers facing end users use Register.
func (s *UserService) CreateUser(ctx context.Context, in NewUser) (*models.User, error) {
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}

	user := &models.User{
		Email:        models.NormalizeEmail(in.Email),
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsStaff:      in.IsStaff,
		IsSuperuser:  in.IsSuperuser,
		IsActive:     true,
	}

	u, err := s.repomanager.Users(s.db).Create(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}
	return u, nil
}

// CreateSuperuser creates an active staff superuser.
func (s *UserService) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	return s.CreateUser(ctx, NewUser{Email: email, Password: password, IsStaff: true, IsSuperuser: true})
}

// Register validates a sign-up, creates the account and mails a
// verification link. A failed email is logged and does not fail the
// registration.
func (s *UserService) Register(ctx context.Context, in Registration) (*models.User, error) {
	verr := apierr.Validation()

	email := models.NormalizeEmail(in.Email)
	if _, err := s.repomanager.Users(s.db).GetByEmail(ctx, email); err == nil {
		verr.Add("email", msgEmailTaken)
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, fmt.Errorf("error searching user: %w", err)
	}

	attrs := passwords.Attributes{Email: email, FirstName: in.FirstName, LastName: in.LastName}
	if msgs := passwords.Validate(in.Password, attrs); len(msgs) > 0 {
		verr.Add("password", msgs...)
	}
	if !verr.Empty() {
		return nil, verr
	}
	if in.Password != in.PasswordConfirm {
		return nil, apierr.FieldError("password_confirm", msgPasswordMismatch)
	}

	user, err := s.CreateUser(ctx, NewUser{Email: email, Password: in.Password, FirstName: in.FirstName, LastName: in.LastName})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, apierr.FieldError("email", msgEmailTaken)
		}
		return nil, err
	}

	link := accountLink(s.frontendURL, verifyPath, s.verifyTokens, user)
	if err := s.mailer.SendVerification(ctx, user.Email, user.FullName(), link); err != nil {
		s.logger.Error(ctx, "error sending verification email", "user_id", user.ID, "error", err)
	}

	return user, nil
}

// List returns one page of the users visible to actor. Non-staff callers
// only ever see themselves.
func (s *UserService) List(ctx context.Context, actor *models.User, filter models.UserFilter, params pagination.Params) (*UserPage, error) {
	if !actor.IsStaff {
		filter.OnlyID = actor.ID
	}

	repo := s.repomanager.Users(s.db)

	count, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("error counting users: %w", err)
	}

	number, limit, offset, err := params.Window(count)
	if err != nil {
		return nil, err
	}

	users, err := repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}

	return &UserPage{Users: users, Count: count, Number: number, PageSize: limit}, nil
}

// Get returns a user visible to actor or common.ErrorNotFound.
func (s *UserService) Get(ctx context.Context, actor *models.User, id string) (*models.User, error) {
	if err := s.checkScope(actor, id); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).GetByID(ctx, id)
}

// Update applies a partial profile update to a user visible to actor.
func (s *UserService) Update(ctx context.Context, actor *models.User, id string, upd models.UserUpdate) (*models.User, error) {
	if err := s.checkScope(actor, id); err != nil {
		return nil, err
	}
	return s.repomanager.Users(s.db).Update(ctx, id, upd)
}

// Deactivate soft-deletes a user visible to actor.
func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id string) error {
	if err := s.checkScope(actor, id); err != nil {
		return err
	}
	return s.repomanager.Users(s.db).Deactivate(ctx, id)
}

// ChangePassword replaces actor's password after checking the old one.
func (s *UserService) ChangePassword(ctx context.Context, actor *models.User, in PasswordChange) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Users(tx)

		user, err := repo.GetByID(ctx, actor.ID)
		if err != nil {
			return fmt.Errorf("error searching user: %w", err)
		}

		verr := apierr.Validation()
		if ok, _ := s.hasher.Verify(in.OldPassword, user.PasswordHash); !ok {
			verr.Add("old_password", msgOldPassword)
		}
		attrs := passwords.Attributes{Email: user.Email, FirstName: user.FirstName, LastName: user.LastName}
		if msgs := passwords.Validate(in.NewPassword, attrs); len(msgs) > 0 {
			verr.Add("new_password", msgs...)
		}
		if !verr.Empty() {
			return verr
		}
		if in.NewPassword != in.NewPasswordConfirm {
			return apierr.FieldError("new_password_confirm", msgPasswordMismatch)
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

// AttachPicture reserves a new object key for actor's profile picture,
// stores it and returns a presigned upload URL.
func (s *UserService) AttachPicture(ctx context.Context, actor *models.User) (*PictureUpload, error) {
	if s.storage == nil {
		return nil, ErrStorageDisabled
	}

	key := storage.ProfilePictureKey(actor.ID, s.now().UTC())
	url, err := s.storage.PresignPut(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("error presigning upload: %w", err)
	}

	if _, err := s.repomanager.Users(s.db).Update(ctx, actor.ID, models.UserUpdate{ProfilePicture: &key}); err != nil {
		return nil, fmt.Errorf("error storing picture key: %w", err)
	}

	return &PictureUpload{Key: key, UploadURL: url}, nil
}

// PictureURL renders a stored picture key for clients: a presigned
// download URL when storage is configured, the key itself otherwise.
func (s *UserService) PictureURL(ctx context.Context, key string) string {
	if s.storage == nil || key == "" {
		return key
	}
	url, err := s.storage.PresignGet(ctx, key)
	if err != nil {
		s.logger.Warn(ctx, "error presigning picture", "key", key, "error", err)
		return key
	}
	return url
}

// checkScope hides other accounts from non-staff callers and rejects ids
// that cannot exist.
func (s *UserService) checkScope(actor *models.User, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return common.ErrorNotFound
	}
	if !actor.IsStaff && actor.ID != id {
		return common.ErrorNotFound
	}
	return nil
}
