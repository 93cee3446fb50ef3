package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/envelope"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/pagination"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/gin-gonic/gin"
)

// UserServicer is the part of *services.UserService used by the controller.
type UserServicer interface {
	pictureURLer
	Register(ctx context.Context, in services.Registration) (*models.User, error)
	List(ctx context.Context, actor *models.User, filter models.UserFilter, params pagination.Params) (*services.UserPage, error)
	Get(ctx context.Context, actor *models.User, id string) (*models.User, error)
	Update(ctx context.Context, actor *models.User, id string, upd models.UserUpdate) (*models.User, error)
	Deactivate(ctx context.Context, actor *models.User, id string) error
	ChangePassword(ctx context.Context, actor *models.User, in services.PasswordChange) error
	AttachPicture(ctx context.Context, actor *models.User) (*services.PictureUpload, error)
}

const (
	msgCreated         = "Resource created successfully"
	msgRetrieved       = "Resource retrieved successfully"
	msgUpdated         = "Resource updated successfully"
	msgProfile         = "User profile retrieved successfully"
	msgPasswordChanged = "Password changed successfully."
	msgPictureUploaded = "Profile picture upload URL created"
)

// Listing filters, all RFC 3339 timestamps.
const (
	filterCreatedAfter  = "created_after"
	filterCreatedBefore = "created_before"
	filterUpdatedAfter  = "updated_after"
	filterUpdatedBefore = "updated_before"
)

var userActions = actionTable{
	"list":            {permission: isAuthenticated},
	"create":          {permission: allowAny, input: func() any { return &UserCreateRequest{} }},
	"retrieve":        {permission: isAuthenticated},
	"update":          {permission: isAuthenticated, input: func() any { return &UserUpdateRequest{} }},
	"partial_update":  {permission: isAuthenticated, input: func() any { return &UserUpdateRequest{} }},
	"destroy":         {permission: isAuthenticated},
	"me":              {permission: isAuthenticated},
	"change_password": {permission: isAuthenticated, input: func() any { return &ChangePasswordRequest{} }},
	"upload_picture":  {permission: isAuthenticated},
}

// UsersController serves /users/.
type UsersController struct {
	users UserServicer
}

func NewUsersController(u UserServicer) *UsersController {
	return &UsersController{users: u}
}

// routes returns the extra actions; the CRUD routes come from
// resourceRoutes. Static segments win over /:id/ in gin's router.
func (uc *UsersController) routes() []route {
	return append([]route{
		{http.MethodGet, "/me/", "me", uc.Me},
		{http.MethodPost, "/change_password/", "change_password", uc.ChangePassword},
		{http.MethodPost, "/me/picture/", "upload_picture", uc.Picture},
	}, resourceRoutes(uc)...)
}

func (uc *UsersController) List(c *gin.Context) {
	filter, err := parseUserFilter(c)
	if err != nil {
		c.Error(err)
		return
	}

	ctx := c.Request.Context()
	page, err := uc.users.List(ctx, currentUser(c), filter, pagination.ParseParams(c.Request.URL.Query()))
	if err != nil {
		c.Error(err)
		return
	}

	results := make([]UserResponse, 0, len(page.Users))
	for _, u := range page.Users {
		results = append(results, newUserResponse(ctx, uc.users, u))
	}

	body := pagination.NewPage(results, page.Count, page.Number, page.PageSize, pagination.AbsoluteURL(c.Request))
	c.JSON(http.StatusOK, envelope.Success(body, ""))
}

func (uc *UsersController) Create(c *gin.Context) {
	req := validated[*UserCreateRequest](c)

	ctx := c.Request.Context()
	user, err := uc.users.Register(ctx, services.Registration{
		Email:           req.Email,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.Header("Location", user.ID)
	c.JSON(http.StatusCreated, envelope.SuccessCode(http.StatusCreated, newUserResponse(ctx, uc.users, user), msgCreated))
}

func (uc *UsersController) Retrieve(c *gin.Context) {
	ctx := c.Request.Context()
	user, err := uc.users.Get(ctx, currentUser(c), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, envelope.Success(newUserResponse(ctx, uc.users, user), msgRetrieved))
}

// Update serves both PUT and PATCH. Every profile field is optional, so
// the two only differ in name.
func (uc *UsersController) Update(c *gin.Context) {
	req := validated[*UserUpdateRequest](c)

	ctx := c.Request.Context()
	user, err := uc.users.Update(ctx, currentUser(c), c.Param("id"), req.toModel())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, envelope.Success(newUserResponse(ctx, uc.users, user), msgUpdated))
}

// Destroy deactivates the account; rows are never deleted.
func (uc *UsersController) Destroy(c *gin.Context) {
	if err := uc.users.Deactivate(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (uc *UsersController) Me(c *gin.Context) {
	c.JSON(http.StatusOK, envelope.Success(newUserResponse(c.Request.Context(), uc.users, currentUser(c)), msgProfile))
}

func (uc *UsersController) ChangePassword(c *gin.Context) {
	req := validated[*ChangePasswordRequest](c)

	err := uc.users.ChangePassword(c.Request.Context(), currentUser(c), services.PasswordChange{
		OldPassword:        req.OldPassword,
		NewPassword:        req.NewPassword,
		NewPasswordConfirm: req.NewPasswordConfirm,
	})
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, envelope.Success(nil, msgPasswordChanged))
}

func (uc *UsersController) Picture(c *gin.Context) {
	up, err := uc.users.AttachPicture(c.Request.Context(), currentUser(c))
	if err != nil {
		if errors.Is(err, services.ErrStorageDisabled) {
			c.Error(apierr.New(http.StatusServiceUnavailable, "Profile picture uploads are disabled."))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, envelope.Success(PictureUploadResponse{ProfilePicture: up.Key, UploadURL: up.UploadURL}, msgPictureUploaded))
}

// parseUserFilter reads the timestamp filters of the listing. Malformed
// values are reported per parameter.
func parseUserFilter(c *gin.Context) (models.UserFilter, error) {
	var f models.UserFilter
	verr := apierr.Validation()

	for name, dst := range map[string]**time.Time{
		filterCreatedAfter:  &f.CreatedAfter,
		filterCreatedBefore: &f.CreatedBefore,
		filterUpdatedAfter:  &f.UpdatedAfter,
		filterUpdatedBefore: &f.UpdatedBefore,
	} {
		raw := c.Query(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			verr.Add(name, "Enter a valid date/time.")
			continue
		}
		*dst = &t
	}

	if !verr.Empty() {
		return models.UserFilter{}, verr
	}
	return f, nil
}
