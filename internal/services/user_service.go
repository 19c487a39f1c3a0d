package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"prontoBack/internal/models"
	"prontoBack/internal/repositories"
	"prontoBack/utils"
)

const (
	accessTokenTTL  = 20 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
)

type UserService struct {
	UserRepo   *repositories.UserRepository
	WalletRepo *repositories.WalletRepository
	Tokens     *utils.Manager
}

func (s *UserService) SignUp(ctx context.Context, req models.SignUpRequest) (models.User, error) {
	role := strings.TrimSpace(req.Role)
	if role != "client" && role != "professional" {
		return models.User{}, fmt.Errorf("unsupported role %q", role)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	user, err := s.UserRepo.CreateUser(ctx, models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: string(hashedPassword),
		Role:     role,
		City:     req.City,
		Province: req.Province,
	})
	if err != nil {
		return models.User{}, err
	}

	// Professionals pay per lead, so every professional account starts with an
	// empty wallet.
	if role == "professional" {
		if _, err := s.WalletRepo.CreateWallet(ctx, user.ID); err != nil {
			return models.User{}, fmt.Errorf("create wallet: %w", err)
		}
	}
	return user, nil
}

// Profile returns the account behind an authenticated user id.
func (s *UserService) Profile(ctx context.Context, userID int) (models.User, error) {
	user, err := s.UserRepo.GetUserByID(ctx, userID)
	if err != nil {
		return models.User{}, err
	}
	user.Password = ""
	return user, nil
}

func (s *UserService) SignIn(ctx context.Context, email, password string) (models.User, models.Tokens, error) {
	user, err := s.UserRepo.GetUserByEmail(ctx, email)
	if err != nil {
		return models.User{}, models.Tokens{}, models.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return models.User{}, models.Tokens{}, models.ErrInvalidCredentials
	}

	accessToken, err := s.Tokens.NewAccessToken(user.ID, user.Role, accessTokenTTL)
	if err != nil {
		return models.User{}, models.Tokens{}, err
	}
	refreshToken, err := s.Tokens.NewRefreshToken()
	if err != nil {
		return models.User{}, models.Tokens{}, err
	}

	err = s.UserRepo.CreateSession(ctx, models.Session{
		UserID:       user.ID,
		Role:         user.Role,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(refreshTokenTTL),
	})
	if err != nil {
		return models.User{}, models.Tokens{}, err
	}

	user.Password = ""
	return user, models.Tokens{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}
