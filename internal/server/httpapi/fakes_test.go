package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/logging"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/pagination"
	"github.com/dmitrijs2005/apikit/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var errBoom = errors.New("boom")

const (
	staffToken = "staff-token"
	userToken  = "user-token"
)

var (
	staffUser = &models.User{ID: "11111111-1111-1111-1111-111111111111", Email: "admin@example.com", IsStaff: true, IsActive: true}
	plainUser = &models.User{ID: "22222222-2222-2222-2222-222222222222", Email: "ann@example.com", FirstName: "Ann", IsActive: true}
)

// fakeAuth implements AuthServicer. Unset hooks return zero values.
type fakeAuth struct {
	login        func(email, password string) (*services.LoginResult, error)
	refresh      func(token string) (*services.TokenPair, error)
	verify       func(token string) error
	logout       func(token string) error
	resetRequest func(email string) (string, error)
	resetConfirm func(in services.PasswordResetConfirm) error
	verifyEmail  func(uid, token string) error
}

func (f *fakeAuth) UserFromAccessToken(_ context.Context, token string) (*models.User, error) {
	switch token {
	case staffToken:
		return staffUser, nil
	case userToken:
		return plainUser, nil
	case "inactive":
		return nil, common.ErrInactiveUser
	default:
		return nil, common.ErrInvalidToken
	}
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*services.LoginResult, error) {
	if f.login == nil {
		return &services.LoginResult{User: plainUser, Tokens: &services.TokenPair{AccessToken: "a", RefreshToken: "r"}}, nil
	}
	return f.login(email, password)
}

func (f *fakeAuth) Refresh(_ context.Context, token string) (*services.TokenPair, error) {
	if f.refresh == nil {
		return &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	}
	return f.refresh(token)
}

func (f *fakeAuth) Verify(_ context.Context, token string) error {
	if f.verify == nil {
		return nil
	}
	return f.verify(token)
}

func (f *fakeAuth) Logout(_ context.Context, token string) error {
	if f.logout == nil {
		return nil
	}
	return f.logout(token)
}

func (f *fakeAuth) RequestPasswordReset(_ context.Context, email string) (string, error) {
	if f.resetRequest == nil {
		return "", nil
	}
	return f.resetRequest(email)
}

func (f *fakeAuth) ConfirmPasswordReset(_ context.Context, in services.PasswordResetConfirm) error {
	if f.resetConfirm == nil {
		return nil
	}
	return f.resetConfirm(in)
}

func (f *fakeAuth) VerifyEmail(_ context.Context, uid, token string) error {
	if f.verifyEmail == nil {
		return nil
	}
	return f.verifyEmail(uid, token)
}

// fakeUsers implements UserServicer on top of a fixed user set.
type fakeUsers struct {
	users      map[string]*models.User
	register   func(in services.Registration) (*models.User, error)
	changePass func(in services.PasswordChange) error
	picture    func() (*services.PictureUpload, error)

	lastFilter models.UserFilter
	updated    models.UserUpdate
	deactivate string
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*models.User{staffUser.ID: staffUser, plainUser.ID: plainUser}}
}

func (f *fakeUsers) PictureURL(_ context.Context, key string) string {
	if key == "" {
		return ""
	}
	return "https://cdn.test/" + key
}

func (f *fakeUsers) Register(_ context.Context, in services.Registration) (*models.User, error) {
	if f.register != nil {
		return f.register(in)
	}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return &models.User{ID: "33333333-3333-3333-3333-333333333333", Email: in.Email, FirstName: in.FirstName, DateJoined: now, CreatedAt: now, UpdatedAt: now}, nil
}

func (f *fakeUsers) visible(actor *models.User, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok || (!actor.IsStaff && actor.ID != id) {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context, actor *models.User, filter models.UserFilter, params pagination.Params) (*services.UserPage, error) {
	f.lastFilter = filter
	var all []*models.User
	if actor.IsStaff {
		all = []*models.User{staffUser, plainUser}
	} else {
		all = []*models.User{actor}
	}
	number, limit, offset, err := params.Window(len(all))
	if err != nil {
		return nil, err
	}
	end := min(offset+limit, len(all))
	return &services.UserPage{Users: all[offset:end], Count: len(all), Number: number, PageSize: limit}, nil
}

func (f *fakeUsers) Get(_ context.Context, actor *models.User, id string) (*models.User, error) {
	return f.visible(actor, id)
}

func (f *fakeUsers) Update(_ context.Context, actor *models.User, id string, upd models.UserUpdate) (*models.User, error) {
	u, err := f.visible(actor, id)
	if err != nil {
		return nil, err
	}
	f.updated = upd
	c := *u
	if upd.FirstName != nil {
		c.FirstName = *upd.FirstName
	}
	return &c, nil
}

func (f *fakeUsers) Deactivate(_ context.Context, actor *models.User, id string) error {
	if _, err := f.visible(actor, id); err != nil {
		return err
	}
	f.deactivate = id
	return nil
}

func (f *fakeUsers) ChangePassword(_ context.Context, _ *models.User, in services.PasswordChange) error {
	if f.changePass != nil {
		return f.changePass(in)
	}
	return nil
}

func (f *fakeUsers) AttachPicture(_ context.Context, actor *models.User) (*services.PictureUpload, error) {
	if f.picture != nil {
		return f.picture()
	}
	return nil, services.ErrStorageDisabled
}

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

// testRouter wires the full engine around the fakes with every host allowed.
func testRouter(t *testing.T, a *fakeAuth, u *fakeUsers) *gin.Engine {
	t.Helper()
	return NewRouter(Options{
		Logger:       logging.Discard(),
		Auth:         a,
		Users:        u,
		DB:           fakePinger{},
		AllowedHosts: []string{"*"},
		CORSOrigins:  []string{"http://localhost:3000"},
	})
}

// envelopeBody is the decoded response envelope.
type envelopeBody struct {
	Status  string                     `json:"status"`
	Code    int                        `json:"code"`
	Message string                     `json:"message"`
	Data    json.RawMessage            `json:"data"`
	Errors  map[string]json.RawMessage `json:"errors"`
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelopeBody {
	t.Helper()
	var e envelopeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e), rec.Body.String())
	return e
}

func fieldMsgs(t *testing.T, e envelopeBody, field string) []string {
	t.Helper()
	raw, ok := e.Errors[field]
	require.True(t, ok, "no errors for %q: %v", field, e.Errors)
	var msgs []string
	require.NoError(t, json.Unmarshal(raw, &msgs))
	return msgs
}

// extract returns the raw JSON of one key of an object.
func extract(t *testing.T, raw json.RawMessage, key string) string {
	t.Helper()
	var obj map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &obj))
	return string(obj[key])
}
