package models

import "time"

// OutstandingToken records every refresh token handed out.
type OutstandingToken struct {
	ID        int64
	JTI       string
	UserID    string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// BlacklistedToken marks an outstanding token as revoked.
type BlacklistedToken struct {
	ID            int64
	TokenID       int64
	BlacklistedAt time.Time
}
