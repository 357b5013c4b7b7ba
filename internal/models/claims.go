package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are the claims carried by a signed session token. The JTI
// (RegisteredClaims.ID) links the token to its sessions row; a token whose
// row has been deleted is rejected even if the signature still verifies.
type SessionClaims struct {
	Login string `json:"login"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}
