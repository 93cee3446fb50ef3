package services

import (
	"strings"

	"github.com/dmitrijs2005/apikit/internal/server/auth"
	"github.com/dmitrijs2005/apikit/internal/server/models"
)

const (
	resetPath  = "reset-password"
	verifyPath = "verify-email"
)

// accountLink builds <base>/<path>/<uid>/<token>/ for emailed links.
func accountLink(base, path string, gen *auth.TokenGenerator, u *models.User) string {
	uid := auth.EncodeUID(u.ID)
	token := gen.MakeToken(u)
	return strings.TrimRight(base, "/") + "/" + path + "/" + uid + "/" + token + "/"
}
