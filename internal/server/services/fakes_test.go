package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/dbx"
	"github.com/dmitrijs2005/apikit/internal/server/config"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/dmitrijs2005/apikit/internal/server/passwords"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/tokens"
	"github.com/dmitrijs2005/apikit/internal/server/repositories/users"
	"github.com/google/uuid"
)

type errBoom struct{}

func (errBoom) Error() string { return "boom" }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:                    "k",
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: 2 * time.Hour,
		PasswordResetTimeout:         time.Hour,
		FrontendURL:                  "http://front.test/",
	}
}

func testHasher(t *testing.T) *passwords.Hasher {
	t.Helper()
	h, err := passwords.NewHasher(passwords.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32})
	if err != nil {
		t.Fatalf("NewHasher: %v", err)
	}
	return h
}

// --- users ---

type fakeUsersRepo struct {
	mu      sync.Mutex
	byID    map[string]*models.User
	err     error
	filters []models.UserFilter
}

func newFakeUsersRepo() *fakeUsersRepo {
	return &fakeUsersRepo{byID: map[string]*models.User{}}
}

func (f *fakeUsersRepo) add(u *models.User) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	f.byID[u.ID] = u
	return u
}

func (f *fakeUsersRepo) get(id string) *models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.byID[id]
}

func (f *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	for _, e := range f.byID {
		if strings.EqualFold(e.Email, u.Email) {
			f.mu.Unlock()
			return nil, common.ErrorAlreadyExists
		}
	}
	f.mu.Unlock()
	c := *u
	now := time.Now()
	c.DateJoined, c.CreatedAt, c.UpdatedAt = now, now, now
	return f.add(&c), nil
}

func (f *fakeUsersRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	u := f.get(id)
	if u == nil {
		return nil, common.ErrorNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if strings.EqualFold(u.Email, email) {
			c := *u
			return &c, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (f *fakeUsersRepo) matching(filter models.UserFilter) []*models.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	var out []*models.User
	for _, u := range f.byID {
		if filter.OnlyID != "" && u.ID != filter.OnlyID {
			continue
		}
		out = append(out, u)
	}
	return out
}

func (f *fakeUsersRepo) List(_ context.Context, filter models.UserFilter, limit, offset int) ([]*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	all := f.matching(filter)
	if offset >= len(all) {
		return nil, nil
	}
	return all[offset:min(offset+limit, len(all))], nil
}

func (f *fakeUsersRepo) Count(_ context.Context, filter models.UserFilter) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return len(f.matching(filter)), nil
}

func (f *fakeUsersRepo) Update(_ context.Context, id string, upd models.UserUpdate) (*models.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.FirstName, upd.FirstName)
	set(&u.LastName, upd.LastName)
	set(&u.Bio, upd.Bio)
	set(&u.ProfilePicture, upd.ProfilePicture)
	set(&u.PhoneNumber, upd.PhoneNumber)
	c := *u
	return &c, nil
}

func (f *fakeUsersRepo) mutate(id string, fn func(u *models.User)) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	fn(u)
	return nil
}

func (f *fakeUsersRepo) SetPassword(_ context.Context, id string, hash string) error {
	return f.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (f *fakeUsersRepo) SetEmailVerified(_ context.Context, id string) error {
	return f.mutate(id, func(u *models.User) { u.EmailVerified = true })
}

func (f *fakeUsersRepo) Deactivate(_ context.Context, id string) error {
	return f.mutate(id, func(u *models.User) { u.IsActive = false })
}

func (f *fakeUsersRepo) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	return f.mutate(id, func(u *models.User) { u.LastLogin = &at })
}

// --- tokens ---

type fakeTokensRepo struct {
	mu          sync.Mutex
	outstanding map[string]*models.OutstandingToken
	blacklisted map[int64]bool
	nextID      int64
	createErr   error
	// staleReads makes IsBlacklisted miss rows written after the read
	// snapshot, as a concurrent transaction would.
	staleReads bool
}

func newFakeTokensRepo() *fakeTokensRepo {
	return &fakeTokensRepo{outstanding: map[string]*models.OutstandingToken{}, blacklisted: map[int64]bool{}}
}

func (f *fakeTokensRepo) CreateOutstanding(_ context.Context, t *models.OutstandingToken) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t.ID = f.nextID
	t.CreatedAt = time.Now()
	c := *t
	f.outstanding[t.JTI] = &c
	return nil
}

func (f *fakeTokensRepo) GetOutstandingByJTI(_ context.Context, jti string) (*models.OutstandingToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.outstanding[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := *t
	return &c, nil
}

func (f *fakeTokensRepo) Blacklist(_ context.Context, tokenID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.blacklisted[tokenID] {
		return common.ErrTokenBlacklisted
	}
	f.blacklisted[tokenID] = true
	return nil
}

func (f *fakeTokensRepo) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.outstanding[jti]
	if !ok || f.staleReads {
		return false, nil
	}
	return f.blacklisted[t.ID], nil
}

func (f *fakeTokensRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for jti, t := range f.outstanding {
		if t.ExpiresAt.Before(now) {
			delete(f.blacklisted, t.ID)
			delete(f.outstanding, jti)
			n++
		}
	}
	return n, nil
}

type fakeRepoManager struct {
	u *fakeUsersRepo
	t *fakeTokensRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{u: newFakeUsersRepo(), t: newFakeTokensRepo()}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository             { return m.u }
func (m *fakeRepoManager) Tokens(dbx.DBTX) tokens.Repository           { return m.t }

// --- mail and storage ---

type sentMail struct {
	kind, to, name, link string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) record(kind, to, name, link string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMail{kind, to, name, link})
	return f.err
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, to, name, link string) error {
	return f.record("reset", to, name, link)
}

func (f *fakeMailer) SendVerification(_ context.Context, to, name, link string) error {
	return f.record("verify", to, name, link)
}

type fakeStorage struct {
	putKeys []string
	err     error
}

func (f *fakeStorage) PresignPut(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.putKeys = append(f.putKeys, key)
	return "https://put.test/" + key, nil
}

func (f *fakeStorage) PresignGet(_ context.Context, key string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://get.test/" + key, nil
}
