package models

import "github.com/golang-jwt/jwt/v5"

// JWTClaims carries the verified identity attached to mutation requests.
// Token issuance happens outside this service; only verification runs here.
type JWTClaims struct {
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}
