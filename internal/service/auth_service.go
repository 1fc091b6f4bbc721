package service

import (
	"fmt"

	"github.com/renderscope/api/internal/auth"
	"github.com/renderscope/api/internal/model"
)

// mockUser is returned for every login; identity verification is out of scope.
var mockUser = model.User{
	ID:      "user_123",
	Email:   "user@company.com",
	Name:    "John Doe",
	Picture: "https://images.pexels.com/photos/220453/pexels-photo-220453.jpeg?auto=compress&cs=tinysrgb&w=64&h=64&dpr=2",
	Role:    "admin",
}

// AuthService issues mock dashboard sessions
type AuthService struct {
	issuer *auth.TokenIssuer
}

func NewAuthService(issuer *auth.TokenIssuer) *AuthService {
	return &AuthService{issuer: issuer}
}

// Login accepts any credential and returns a session for the mock user.
func (s *AuthService) Login(req *model.LoginRequest) (*model.AuthResponse, error) {
	return s.issue(mockUser)
}

// Refresh issues a new token for the identity of a valid session.
func (s *AuthService) Refresh(claims *auth.Claims) (*model.AuthResponse, error) {
	return s.issue(UserFromClaims(claims))
}

// UserFromClaims rebuilds the user profile carried by a token.
func UserFromClaims(claims *auth.Claims) model.User {
	user := model.User{
		ID:    claims.UserID,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	}
	if user.ID == mockUser.ID {
		user.Picture = mockUser.Picture
	}
	return user
}

func (s *AuthService) issue(user model.User) (*model.AuthResponse, error) {
	token, expiresAt, err := s.issuer.Issue(user.ID, user.Email, user.Name, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &model.AuthResponse{
		Token:     token,
		User:      user,
		ExpiresAt: expiresAt,
	}, nil
}
