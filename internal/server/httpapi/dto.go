package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/apikit/internal/server/models"
)

// Request bodies. Validation tags use the "validate" key; gin's own
// "binding" validation is not used.

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenObtainRequest is the body of token/; unlike login/ both fields are
// validated as required.
type TokenObtainRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Refresh string `json:"refresh" validate:"required"`
}

type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type LogoutRequest struct {
	Refresh string `json:"refresh"`
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmRequest struct {
	UID                string `json:"uid" validate:"required"`
	Token              string `json:"token" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

type EmailVerificationRequest struct {
	UID   string `json:"uid" validate:"required"`
	Token string `json:"token" validate:"required"`
}

type UserCreateRequest struct {
	Email           string `json:"email" validate:"required,email,max=254"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required"`
	FirstName       string `json:"first_name" validate:"max=150"`
	LastName        string `json:"last_name" validate:"max=150"`
}

type UserUpdateRequest struct {
	FirstName      *string `json:"first_name" validate:"omitempty,max=150"`
	LastName       *string `json:"last_name" validate:"omitempty,max=150"`
	Bio            *string `json:"bio"`
	ProfilePicture *string `json:"profile_picture" validate:"omitempty,max=1024"`
	PhoneNumber    *string `json:"phone_number" validate:"omitempty,max=20"`
}

func (r *UserUpdateRequest) toModel() models.UserUpdate {
	return models.UserUpdate{
		FirstName:      r.FirstName,
		LastName:       r.LastName,
		Bio:            r.Bio,
		ProfilePicture: r.ProfilePicture,
		PhoneNumber:    r.PhoneNumber,
	}
}

type ChangePasswordRequest struct {
	OldPassword        string `json:"old_password" validate:"required"`
	NewPassword        string `json:"new_password" validate:"required"`
	NewPasswordConfirm string `json:"new_password_confirm" validate:"required"`
}

// Responses.

type UserResponse struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	PhoneNumber    string    `json:"phone_number"`
	DateJoined     time.Time `json:"date_joined"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserSummary is the user block of token responses.
type UserSummary struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type TokenPairResponse struct {
	Refresh string `json:"refresh"`
	Access  string `json:"access"`
}

type LoginResponse struct {
	Refresh string      `json:"refresh"`
	Access  string      `json:"access"`
	User    UserSummary `json:"user"`
}

type PictureUploadResponse struct {
	ProfilePicture string `json:"profile_picture"`
	UploadURL      string `json:"upload_url"`
}

// pictureURLer renders stored picture keys.
type pictureURLer interface {
	PictureURL(ctx context.Context, key string) string
}

func newUserResponse(ctx context.Context, p pictureURLer, u *models.User) UserResponse {
	return UserResponse{
		ID:             u.ID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Bio:            u.Bio,
		ProfilePicture: p.PictureURL(ctx, u.ProfilePicture),
		PhoneNumber:    u.PhoneNumber,
		DateJoined:     u.DateJoined,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

func newUserSummary(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}
