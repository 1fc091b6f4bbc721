package model

import "time"

// User is the mock dashboard user returned on login
type User struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
	Role    string `json:"role"`
}

// LoginRequest carries the identity provider credential
type LoginRequest struct {
	Credential string `json:"credential" validate:"required,min=1,max=4096"`
}

// AuthResponse is returned by login and refresh
type AuthResponse struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
}
