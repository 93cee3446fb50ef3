package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/apikit/internal/common"
	"github.com/dmitrijs2005/apikit/internal/server/models"
	"github.com/google/uuid"
)

const (
	// ResetKeySalt and VerifyKeySalt separate the two link types, so a reset
	// token cannot be replayed as an email verification token.
	ResetKeySalt  = "apikit.auth.PasswordResetTokenGenerator"
	VerifyKeySalt = "apikit.auth.EmailVerificationTokenGenerator"
)

// tokenEpoch is the reference point of the token timestamp.
var tokenEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// TokenGenerator makes and checks stateless one-time tokens of the form
// "<base36 timestamp>-<hmac>". The HMAC covers the user's id, password
// hash, last login and email, so any of those changing invalidates the token.
type TokenGenerator struct {
	key     []byte
	timeout time.Duration
	now     func() time.Time
}

// NewTokenGenerator derives the signing key from salt and secret.
func NewTokenGenerator(salt string, secret []byte, timeout time.Duration) *TokenGenerator {
	sum := sha256.Sum256(append([]byte(salt), secret...))
	return &TokenGenerator{key: sum[:], timeout: timeout, now: time.Now}
}

// MakeToken returns a token for u that is valid for the generator timeout.
func (g *TokenGenerator) MakeToken(u *models.User) string {
	return g.makeTokenWithTimestamp(u, g.secondsSinceEpoch(g.now()))
}

// CheckToken reports whether token was made for u and has not expired.
func (g *TokenGenerator) CheckToken(u *models.User, token string) bool {
	if u == nil || token == "" {
		return false
	}

	tsPart, _, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}
	ts, err := strconv.ParseInt(tsPart, 36, 64)
	if err != nil || ts < 0 {
		return false
	}

	if !hmac.Equal([]byte(g.makeTokenWithTimestamp(u, ts)), []byte(token)) {
		return false
	}

	age := g.secondsSinceEpoch(g.now()) - ts
	return age <= int64(g.timeout/time.Second)
}

func (g *TokenGenerator) secondsSinceEpoch(t time.Time) int64 {
	return int64(t.Sub(tokenEpoch) / time.Second)
}

func (g *TokenGenerator) makeTokenWithTimestamp(u *models.User, ts int64) string {
	tsB36 := strconv.FormatInt(ts, 36)

	mac := hmac.New(sha256.New, g.key)
	mac.Write([]byte(hashValue(u, ts)))
	full := hex.EncodeToString(mac.Sum(nil))

	// every second character keeps links short
	short := make([]byte, 0, len(full)/2)
	for i := 0; i < len(full); i += 2 {
		short = append(short, full[i])
	}

	return tsB36 + "-" + string(short)
}

func hashValue(u *models.User, ts int64) string {
	login := ""
	if u.LastLogin != nil {
		login = u.LastLogin.UTC().Truncate(time.Second).Format("2006-01-02 15:04:05")
	}
	return u.ID + u.PasswordHash + login + strconv.FormatInt(ts, 10) + u.Email
}

// EncodeUID renders a user id for use in a link.
func EncodeUID(id string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(id))
}

// DecodeUID reverses EncodeUID and checks the result is a UUID. It returns
// common.ErrInvalidUID on any failure.
func DecodeUID(uid string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(uid, "="))
	if err != nil {
		return "", common.ErrInvalidUID
	}
	id, err := uuid.Parse(string(raw))
	if err != nil {
		return "", common.ErrInvalidUID
	}
	return id.String(), nil
}
