package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"assetdeck/api/internal/config"
	"assetdeck/api/internal/ids"
	"assetdeck/api/internal/models"
	"assetdeck/api/internal/repository"
	"assetdeck/api/internal/security"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
	ErrEmailTaken         = errors.New("email already registered")
)

type AuthService struct {
	users  UserStore
	tokens RefreshTokenStore
	cfg    *config.AppConfig
	log    zerolog.Logger
}

func NewAuthService(users UserStore, tokens RefreshTokenStore, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		cfg:    cfg,
		log:    log,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	DisplayName string
}

type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || input.Password == "" {
		return AuthResult{}, fmt.Errorf("email and password required")
	}

	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, err
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	user := models.User{
		ID:           ids.New(),
		Email:        input.Email,
		PasswordHash: passwordHash,
		DisplayName:  input.DisplayName,
		Role:         models.UserRoleFree,
		Status:       models.UserStatusActive,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return AuthResult{}, err
	}

	return s.issueTokens(ctx, user)
}

type LoginInput struct {
	Email    string
	Password string
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates the presented refresh token: verify the signature, match
// the literal value against the store together with ownership and
// non-expiry, delete the old row, persist a replacement and reissue the
// pair. Single-use: a second presentation of the same value fails.
//
// The delete-then-insert pair is deliberately not transactional. A crash in
// between logs the user out but leaves no partial state.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (AuthResult, error) {
	claims, err := security.ParseToken(refreshToken, s.cfg.Security.JWTSecret)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if _, err := s.tokens.FindValid(ctx, refreshToken, claims.User.ID); err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}

	if err := s.tokens.DeleteByToken(ctx, refreshToken); err != nil {
		return AuthResult{}, err
	}

	user, err := s.users.GetByID(ctx, claims.User.ID)
	if err != nil {
		return AuthResult{}, ErrInvalidCredentials
	}
	if user.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	return s.issueTokens(ctx, user)
}

// Resolve is the per-request session state machine over the two cookie
// slots. It returns the authenticated identity, or nil for anonymous, and a
// freshly minted access token when the refresh fallback was taken. Every
// verification failure is normalized to anonymous here; nothing propagates.
func (s *AuthService) Resolve(ctx context.Context, accessToken string, refreshToken string) (*security.Identity, string) {
	if accessToken != "" {
		claims, err := security.ParseToken(accessToken, s.cfg.Security.JWTSecret)
		if err == nil {
			return &claims.User, ""
		}
		s.log.Debug().Err(err).Msg("access token rejected, trying refresh")
	}

	if refreshToken == "" {
		return nil, ""
	}

	claims, err := security.ParseToken(refreshToken, s.cfg.Security.JWTSecret)
	if err != nil {
		s.log.Debug().Err(err).Msg("refresh token rejected")
		return nil, ""
	}

	// Row presence is the revocation check: logout elsewhere deletes the
	// row while the signature stays valid.
	if _, err := s.tokens.FindValid(ctx, refreshToken, claims.User.ID); err != nil {
		return nil, ""
	}

	access, err := security.SignAccessToken(s.cfg.Security.JWTSecret, claims.User, s.cfg.Security.AccessTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("mint access token failed")
		return nil, ""
	}

	return &claims.User, access
}

// Logout revokes the presented refresh token. Missing or unknown tokens are
// not an error; the caller clears both cookies regardless.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.tokens.DeleteByToken(ctx, refreshToken)
}

func (s *AuthService) ChangePassword(ctx context.Context, userID string, current string, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := security.VerifyPassword(current, user.PasswordHash)
	if err != nil || !ok {
		return ErrInvalidCredentials
	}

	hash, err := security.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return err
	}

	// Revoke every outstanding refresh token so stolen sessions die with
	// the old password.
	if err := s.tokens.DeleteByUser(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("user_id", userID).Msg("revoke refresh tokens failed")
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user models.User) (AuthResult, error) {
	identity := security.Identity{ID: user.ID, Role: string(user.Role)}

	accessToken, err := security.SignAccessToken(s.cfg.Security.JWTSecret, identity, s.cfg.Security.AccessTTL)
	if err != nil {
		return AuthResult{}, err
	}

	refreshToken, err := security.SignRefreshToken(s.cfg.Security.JWTSecret, identity, s.cfg.Security.RefreshTTL)
	if err != nil {
		return AuthResult{}, err
	}

	expiresAt := time.Now().Add(s.cfg.Security.RefreshTTL)
	if err := s.tokens.Create(ctx, refreshToken, user.ID, expiresAt); err != nil {
		return AuthResult{}, err
	}

	return AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}
