package httpapi

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/dmitrijs2005/apikit/internal/server/apierr"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/pagination"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersCreate(t *testing.T) {
	r := testRouter(t, &fakeAuth{}, newFakeUsers())

	rec := do(t, r, http.MethodPost, "/api/v1/users/", "", map[string]string{
		"email": "new@example.com", "password": "Str0ng-pass", "password_confirm": "Str0ng-pass", "first_name": "New",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "33333333-3333-3333-3333-333333333333", rec.Header().Get("Location"))

	e := decode(t, rec)
	assert.Equal(t, http.StatusCreated, e.Code)
	assert.Equal(t, msgCreated, e.Message)
	var u UserResponse
	require.NoError(t, json.Unmarshal(e.Data, &u))
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "New", u.FirstName)
}

func TestUsersCreate_ServiceValidation(t *testing.T) {
	users := newFakeUsers()
	users.register = func(services.Registration) (*models.User, error) {
		return nil, apierr.FieldError("email", "A user with this email already exists.")
	}
	r := testRouter(t, &fakeAuth{}, users)

	rec := do(t, r, http.MethodPost, "/api/v1/users/", "", map[string]string{
		"email": "ann@example.com", "password": "p", "password_confirm": "p",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	e := decode(t, rec)
	assert.Equal(t, msgValidation, e.Message)
	assert.Equal(t, []string{"A user with this email already exists."}, fieldMsgs(t, e, "email"))
}

func TestUsersList(t *testing.T) {
	users := newFakeUsers()
	r := testRouter(t, &fakeAuth{}, users)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/v1/users/", "", nil).Code)

	rec := do(t, r, http.MethodGet, "/api/v1/users/?page_size=1", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	e := decode(t, rec)
	assert.Empty(t, e.Message)

	var page pagination.Page[UserResponse]
	require.NoError(t, json.Unmarshal(e.Data, &page))
	assert.Equal(t, 2, page.Count)
	assert.Equal(t, 2, page.TotalPages)
	assert.Equal(t, 1, page.CurrentPage)
	require.Len(t, page.Results, 1)
	require.NotNil(t, page.Next)
	assert.Equal(t, "http://example.com/api/v1/users/?page=2&page_size=1", *page.Next)
	assert.Nil(t, page.Previous)

	rec = do(t, r, http.MethodGet, "/api/v1/users/", userToken, nil)
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &page))
	assert.Equal(t, 1, page.Count)
	assert.Equal(t, plainUser.Email, page.Results[0].Email)

	rec = do(t, r, http.MethodGet, "/api/v1/users/?page=9", staffToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Invalid page.", decode(t, rec).Message)
}

func TestUsersList_Filters(t *testing.T) {
	users := newFakeUsers()
	r := testRouter(t, &fakeAuth{}, users)

	rec := do(t, r, http.MethodGet, "/api/v1/users/?created_after=2026-01-01T00:00:00Z", staffToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, users.lastFilter.CreatedAfter)
	assert.True(t, users.lastFilter.CreatedAfter.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Nil(t, users.lastFilter.UpdatedBefore)

	rec = do(t, r, http.MethodGet, "/api/v1/users/?updated_before=yesterday", staffToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Enter a valid date/time."}, fieldMsgs(t, decode(t, rec), filterUpdatedBefore))
}

func TestUsersRetrieve(t *testing.T) {
	r := testRouter(t, &fakeAuth{}, newFakeUsers())

	rec := do(t, r, http.MethodGet, "/api/v1/users/"+plainUser.ID+"/", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgRetrieved, decode(t, rec).Message)

	rec = do(t, r, http.MethodGet, "/api/v1/users/"+staffUser.ID+"/", userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, msgNotFound, decode(t, rec).Message)

	rec = do(t, r, http.MethodGet, "/api/v1/users/"+plainUser.ID+"/", staffToken, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUsersUpdate(t *testing.T) {
	users := newFakeUsers()
	r := testRouter(t, &fakeAuth{}, users)

	for _, method := range []string{http.MethodPut, http.MethodPatch} {
		rec := do(t, r, method, "/api/v1/users/"+plainUser.ID+"/", userToken, map[string]string{"first_name": "Anna"})
		require.Equal(t, http.StatusOK, rec.Code, method)
		e := decode(t, rec)
		assert.Equal(t, msgUpdated, e.Message)
		var u UserResponse
		require.NoError(t, json.Unmarshal(e.Data, &u))
		assert.Equal(t, "Anna", u.FirstName)
		require.NotNil(t, users.updated.FirstName)
		assert.Nil(t, users.updated.LastName)
	}
}

func TestUsersDestroy(t *testing.T) {
	users := newFakeUsers()
	r := testRouter(t, &fakeAuth{}, users)

	rec := do(t, r, http.MethodDelete, "/api/v1/users/"+staffUser.ID+"/", userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, r, http.MethodDelete, "/api/v1/users/"+plainUser.ID+"/", userToken, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
	assert.Equal(t, plainUser.ID, users.deactivate)
}

func TestUsersMe(t *testing.T) {
	r := testRouter(t, &fakeAuth{}, newFakeUsers())

	rec := do(t, r, http.MethodGet, "/api/v1/users/me/", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	e := decode(t, rec)
	assert.Equal(t, msgProfile, e.Message)
	var u UserResponse
	require.NoError(t, json.Unmarshal(e.Data, &u))
	assert.Equal(t, plainUser.ID, u.ID)

	assert.Equal(t, http.StatusUnauthorized, do(t, r, http.MethodGet, "/api/v1/users/me/", "", nil).Code)
}

func TestUsersChangePassword(t *testing.T) {
	users := newFakeUsers()
	var got services.PasswordChange
	users.changePass = func(in services.PasswordChange) error {
		got = in
		if in.OldPassword != "old" {
			return apierr.FieldError("old_password", "Old password is not correct")
		}
		return nil
	}
	r := testRouter(t, &fakeAuth{}, users)

	body := map[string]string{"old_password": "old", "new_password": "n", "new_password_confirm": "n"}
	rec := do(t, r, http.MethodPost, "/api/v1/users/change_password/", userToken, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, msgPasswordChanged, decode(t, rec).Message)
	assert.Equal(t, services.PasswordChange{OldPassword: "old", NewPassword: "n", NewPasswordConfirm: "n"}, got)

	body["old_password"] = "wrong"
	rec = do(t, r, http.MethodPost, "/api/v1/users/change_password/", userToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, []string{"Old password is not correct"}, fieldMsgs(t, decode(t, rec), "old_password"))
}

func TestUsersPicture(t *testing.T) {
	users := newFakeUsers()
	r := testRouter(t, &fakeAuth{}, users)

	rec := do(t, r, http.MethodPost, "/api/v1/users/me/picture/", userToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	users.picture = func() (*services.PictureUpload, error) {
		return &services.PictureUpload{Key: "profile_pictures/k", UploadURL: "https://s3.test/put"}, nil
	}
	rec = do(t, r, http.MethodPost, "/api/v1/users/me/picture/", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"profile_picture":"profile_pictures/k","upload_url":"https://s3.test/put"}`, string(decode(t, rec).Data))
}

func TestUserResponse_RendersPicture(t *testing.T) {
	u := &models.User{ID: "x", ProfilePicture: "profile_pictures/x/a"}
	got := newUserResponse(t.Context(), newFakeUsers(), u)
	assert.Equal(t, "https://cdn.test/profile_pictures/x/a", got.ProfilePicture)
}
