package models

import "time"

// Session is one issued access token for a login. At most SessionLimit live
// sessions exist per login; the oldest beyond the limit are evicted on
// creation. TokenID is the JTI claim of the signed token; the row's
// existence is what makes the token valid, so deleting rows revokes tokens.
type Session struct {
	ID        string
	Login     string
	TokenID   string
	CreatedAt time.Time
}
