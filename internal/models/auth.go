package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// StudentLoginRequest holds credentials submitted by a student.
type StudentLoginRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// AdminLoginRequest holds credentials submitted by an administrator.
type AdminLoginRequest struct {
	AdminID   string `json:"admin_id" validate:"required"`
	Password  string `json:"password" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// LoginResponse returns the issued tokens and account info.
type LoginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int64       `json:"expires_in"`
	Account      AccountInfo `json:"account"`
	IssuedAt     time.Time   `json:"issued_at"`
}

// RefreshTokenRequest exchanges a refresh token for a new access token.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
	IP           string `json:"-"`
	UserAgent    string `json:"-"`
}

// RefreshTokenResponse returns the refreshed tokens.
type RefreshTokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	IssuedAt     time.Time `json:"issued_at"`
}

// ChangePasswordRequest payload for updating a password.
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=6"`
}

// AccountInfo describes the authenticated account in responses.
type AccountInfo struct {
	ID      string `json:"id"`
	LoginID string `json:"login_id"`
	Name    string `json:"name"`
	Role    Role   `json:"role"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	AccountID string `json:"account_id"`
	LoginID   string `json:"login_id"`
	Name      string `json:"name"`
	Role      Role   `json:"role"`
	jwt.RegisteredClaims
}
