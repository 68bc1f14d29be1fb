package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"library-service/internal/apperror"
	"library-service/internal/models"
	"library-service/internal/store"
	"library-service/internal/util"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Claims is the JWT payload issued on login.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type AuthService struct {
	store    UserStore
	secret   []byte
	tokenTTL time.Duration
	cost     int
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(store UserStore, secret string, tokenTTL time.Duration) *AuthService {
	return &AuthService{
		store:    store,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
		cost:     bcrypt.DefaultCost,
		logger:   util.GetLogger(),
		now:      time.Now,
	}
}

type RegisterRequest struct {
	Email    string  `json:"email"`
	Password string  `json:"password"`
	Username *string `json:"username"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string `json:"token"`
}

// Register creates an account after checking the email format and password
// strength.
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Register")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperror.NewValidation("Email and password are required for registration.")
	}
	var problems []string
	if reason := validateEmail(email); reason != "" {
		problems = append(problems, reason)
	}
	if reason := validatePassword(req.Password); reason != "" {
		problems = append(problems, reason)
	}
	if len(problems) > 0 {
		return nil, apperror.NewValidation(problems[0], problems...)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, apperror.Wrap(err, "Failed to hash password")
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		Username:     req.Username,
	}
	err = s.store.CreateUser(ctx, user)
	if errors.Is(err, store.ErrDuplicate) {
		return nil, apperror.NewConflict(fmt.Sprintf("Registration failed: Email %q already exists.", email))
	}
	if err != nil {
		s.logger.Error("Failed to register user", zap.String("email", email), zap.Error(err))
		return nil, apperror.Wrap(err, "Database error during user registration.")
	}

	s.logger.Info("User registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks credentials and issues a signed token.
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	ctx, span := util.StartSpan(ctx, "AuthService.Login")
	defer span.End()

	email := strings.TrimSpace(req.Email)
	if email == "" || req.Password == "" {
		return nil, apperror.NewValidation("Email and password are required for login.")
	}

	user, err := s.store.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewUnauthorized("Invalid email or password")
	}
	if err != nil {
		s.logger.Error("Failed to look up user", zap.Error(err))
		return nil, apperror.Wrap(err, "An error occurred during login.")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apperror.NewUnauthorized("Invalid email or password")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, apperror.Wrap(err, "An error occurred during login.")
	}
	return &LoginResponse{Token: token}, nil
}

func (s *AuthService) issueToken(user *models.User) (string, error) {
	now := s.now()
	claims := Claims{
		ID:    user.ID,
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Authenticate verifies a bearer token and loads the user it names.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired())
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, apperror.NewUnauthorized("Unauthorized: Token expired")
	case err != nil:
		return nil, apperror.NewUnauthorized("Unauthorized: Invalid token")
	case claims.ID == "" || claims.Email == "":
		return nil, apperror.NewUnauthorized("Unauthorized: Invalid token content")
	}

	user, err := s.store.GetUserByID(ctx, claims.ID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrInvalidInput) {
		return nil, apperror.NewUnauthorized("Unauthorized: User not found")
	}
	if err != nil {
		s.logger.Error("Failed to load authenticated user", zap.String("user_id", claims.ID), zap.Error(err))
		return nil, apperror.Wrap(err, "Internal server error during authentication.")
	}
	return user, nil
}

// Me returns the profile of an authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperror.NewNotFound("User not found")
	}
	if err != nil {
		return nil, apperror.Wrap(err, "Database error while retrieving user.")
	}
	return user, nil
}
