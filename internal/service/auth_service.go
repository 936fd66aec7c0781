package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examguard-backend/internal/config"
	"github.com/stemsi/examguard-backend/internal/model"
	"github.com/stemsi/examguard-backend/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType   model.Role `json:"token_type"`
	UserID      int        `json:"user_id"`
	Permissions []string   `json:"permissions"`
}

// Principal returns the caller identity carried by the token.
func (c *Claims) Principal() Principal {
	return Principal{UserID: c.UserID, Role: c.TokenType}
}

// HasPermission reports whether the token grants p.
func (c *Claims) HasPermission(p model.Permission) bool {
	for _, have := range c.Permissions {
		if have == string(p) {
			return true
		}
	}
	return false
}

// TokenStore keeps the short-lived auth state that must survive across instances.
type TokenStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	SaveResetToken(ctx context.Context, token string, userID int, ttl time.Duration) error
	// ConsumeResetToken returns the user id and deletes the token; ok is false when unknown or expired.
	ConsumeResetToken(ctx context.Context, token string) (userID int, ok bool, err error)
}

// RedisTokenStore implements TokenStore with expiring Redis keys.
type RedisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb}
}

func (s *RedisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return s.rdb.Set(ctx, config.CacheKey.RevokedTokenKey(tokenID), 1, ttl).Err()
}

func (s *RedisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, config.CacheKey.RevokedTokenKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n > 0, nil
}

func (s *RedisTokenStore) SaveResetToken(ctx context.Context, token string, userID int, ttl time.Duration) error {
	return s.rdb.Set(ctx, config.CacheKey.PasswordResetKey(token), userID, ttl).Err()
}

func (s *RedisTokenStore) ConsumeResetToken(ctx context.Context, token string) (int, bool, error) {
	userID, err := s.rdb.GetDel(ctx, config.CacheKey.PasswordResetKey(token)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("consume reset token: %w", err)
	}
	return userID, true, nil
}

// AuthService handles accounts, passwords and access tokens.
type AuthService struct {
	cfg    *config.Config
	uow    UnitOfWork
	tokens TokenStore
	log    zerolog.Logger
	now    func() time.Time
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config, uow UnitOfWork, tokens TokenStore, log zerolog.Logger) *AuthService {
	return &AuthService{
		cfg:    cfg,
		uow:    uow,
		tokens: tokens,
		log:    log.With().Str("component", "auth_service").Logger(),
		now:    time.Now,
	}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Register creates an account of the given role. Admin accounts need the
// registration key when one is configured; without a key only the first
// admin may self-register.
func (s *AuthService) Register(ctx context.Context, role model.Role, req model.RegisterRequest) (*model.User, error) {
	if role == model.RoleAdmin {
		if err := s.checkAdminKey(ctx, s.uow.Repos(), req.AdminKey); err != nil {
			return nil, err
		}
	}
	return s.CreateUser(ctx, role, req)
}

// CreateUser stores a new account without any registration-key check.
// Operator tools call it directly.
func (s *AuthService) CreateUser(ctx context.Context, role model.Role, req model.RegisterRequest) (*model.User, error) {
	if !role.Valid() {
		return nil, invalid("role", "unknown role")
	}

	repos := s.uow.Repos()
	user := &model.User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.ToLower(strings.TrimSpace(req.Email)),
		FullName: strings.TrimSpace(req.FullName),
		Role:     role,
	}

	if _, err := repos.Users.GetByLogin(ctx, user.Username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if _, err := repos.Users.GetByEmail(ctx, user.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check email: %w", err)
	}

	hash, err := s.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash

	if err := repos.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			if strings.Contains(err.Error(), "email") {
				return nil, ErrEmailTaken
			}
			return nil, ErrUsernameTaken
		}
		return nil, err
	}

	s.log.Info().Int("user_id", user.ID).Str("role", string(role)).Msg("User registered")
	return user, nil
}

func (s *AuthService) checkAdminKey(ctx context.Context, repos Repos, key string) error {
	if s.cfg.AdminRegistrationKey != "" {
		if subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.AdminRegistrationKey)) != 1 {
			return ErrAdminKeyInvalid
		}
		return nil
	}
	admins, err := repos.Users.CountByRole(ctx, model.RoleAdmin)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if admins > 0 {
		return ErrAdminKeyInvalid
	}
	return nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.uow.Repos().Users.GetByLogin(ctx, strings.TrimSpace(req.Login))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := s.CheckPassword(user.PasswordHash, req.Password); err != nil {
		s.log.Warn().Int("user_id", user.ID).Msg("Login with wrong password")
		return nil, err
	}

	token, expiresAt, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}

	s.log.Info().Int("user_id", user.ID).Str("role", string(user.Role)).Msg("User logged in")
	return &model.LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// IssueToken signs an HS256 access token carrying the user's role and permissions.
func (s *AuthService) IssueToken(user *model.User) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.JWTExpiry)

	perms := user.Role.Permissions()
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = string(p)
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.Itoa(user.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType:   user.Role,
		UserID:      user.ID,
		Permissions: names,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ValidateToken parses and verifies a JWT without consulting revocation state.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || !claims.TokenType.Valid() || claims.ID == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Authenticate validates the token and rejects it when it was logged out.
func (s *AuthService) Authenticate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := s.ValidateToken(tokenStr)
	if err != nil {
		return nil, err
	}
	revoked, err := s.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

// Logout revokes the token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, claims *Claims) error {
	var ttl time.Duration
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now())
	}
	if err := s.tokens.Revoke(ctx, claims.ID, ttl); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	s.log.Info().Int("user_id", claims.UserID).Msg("User logged out")
	return nil
}

// Me returns the account behind the token.
func (s *AuthService) Me(ctx context.Context, userID int) (*model.User, error) {
	user, err := s.uow.Repos().Users.GetByID(ctx, userID)
	if err != nil {
		return nil, orNotFound(err, ErrUserNotFound, "get user")
	}
	return user, nil
}

// ForgotPassword issues a one-time reset token. An unknown email yields an
// empty token and no error so callers cannot tell which accounts exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.uow.Repos().Users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("get user: %w", err)
	}

	token := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := s.tokens.SaveResetToken(ctx, token, user.ID, s.cfg.ResetTokenTTL); err != nil {
		return "", fmt.Errorf("save reset token: %w", err)
	}

	s.log.Info().Int("user_id", user.ID).Msg("Password reset requested")
	return token, nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest) error {
	userID, ok, err := s.tokens.ConsumeResetToken(ctx, strings.TrimSpace(req.Token))
	if err != nil {
		return err
	}
	if !ok {
		return ErrResetTokenInvalid
	}

	hash, err := s.HashPassword(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.uow.Repos().Users.UpdatePassword(ctx, userID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("update password: %w", err)
	}

	s.log.Info().Int("user_id", userID).Msg("Password reset")
	return nil
}
