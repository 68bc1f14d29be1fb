package service

import (
	"context"
	"testing"
	"time"

	"library-service/internal/apperror"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAuthService(st *memStore) *AuthService {
	svc := NewAuthService(st, "test-secret", time.Hour)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	st := newMemStore()
	svc := newAuthService(st)
	ctx := context.Background()
	name := "reader"

	user, err := svc.Register(ctx, &RegisterRequest{Email: "reader@example.com", Password: "Secr3t!pass", Username: &name})
	require.NoError(t, err)
	assert.NotEqual(t, "Secr3t!pass", st.users[user.ID].PasswordHash)

	resp, err := svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "Secr3t!pass"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)

	authed, err := svc.Authenticate(ctx, resp.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, authed.ID)

	_, err = svc.Register(ctx, &RegisterRequest{Email: "reader@example.com", Password: "Secr3t!pass"})
	assert.True(t, apperror.Is(err, apperror.Conflict))
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	st := newMemStore()
	svc := newAuthService(st)
	ctx := context.Background()
	_, err := svc.Register(ctx, &RegisterRequest{Email: "reader@example.com", Password: "Secr3t!pass"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, &LoginRequest{Email: "reader@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.Unauthorized))
	assert.Equal(t, "Invalid email or password", apperror.As(err).Message)

	_, err = svc.Login(ctx, &LoginRequest{Email: "nobody@example.com", Password: "Secr3t!pass"})
	assert.True(t, apperror.Is(err, apperror.Unauthorized))

	_, err = svc.Login(ctx, &LoginRequest{Email: "reader@example.com"})
	assert.True(t, apperror.Is(err, apperror.Validation))
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		email    string
		password string
		message  string
	}{
		{"readerexample.com", "Secr3t!pass", "Email must contain '@' symbol and it cannot be the first character."},
		{"@example.com", "Secr3t!pass", "Email must contain valid characters before '@'."},
		{"reader@example", "Secr3t!pass", "Email must contain '.' after '@'."},
		{"reader@.com", "Secr3t!pass", "Email must contain valid characters between '@' and '.'."},
		{"reader@example.", "Secr3t!pass", "Email must have valid characters after the last '.'."},
		{"reader@example.com", "S3t!", "Password must be at least 8 characters long."},
		{"reader@example.com", "secr3t!pass", "Password must contain an uppercase letter."},
		{"reader@example.com", "SECR3T!PASS", "Password must contain a lowercase letter."},
		{"reader@example.com", "Secret!pass", "Password must contain a number."},
		{"reader@example.com", "Secr3tpass", "Password must contain a symbol."},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			svc := newAuthService(newMemStore())

			_, err := svc.Register(context.Background(), &RegisterRequest{Email: tt.email, Password: tt.password})

			require.Error(t, err)
			assert.True(t, apperror.Is(err, apperror.Validation))
			assert.Equal(t, tt.message, apperror.As(err).Message)
		})
	}
}

func TestAuthenticateRejectsBadTokens(t *testing.T) {
	st := newMemStore()
	st.addUser(userID, "reader@example.com")
	svc := newAuthService(st)
	ctx := context.Background()

	sign := func(secret string, claims Claims, method jwt.SigningMethod) string {
		token, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return token
	}
	valid := Claims{
		ID:    userID,
		Email: "reader@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}

	_, err := svc.Authenticate(ctx, sign("test-secret", valid, jwt.SigningMethodHS256))
	require.NoError(t, err)

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
	_, err = svc.Authenticate(ctx, sign("test-secret", expired, jwt.SigningMethodHS256))
	assert.Equal(t, "Unauthorized: Token expired", apperror.As(err).Message)

	_, err = svc.Authenticate(ctx, sign("other-secret", valid, jwt.SigningMethodHS256))
	assert.Equal(t, "Unauthorized: Invalid token", apperror.As(err).Message)

	_, err = svc.Authenticate(ctx, sign("test-secret", valid, jwt.SigningMethodHS512))
	assert.Equal(t, "Unauthorized: Invalid token", apperror.As(err).Message)

	noExpiry := valid
	noExpiry.ExpiresAt = nil
	_, err = svc.Authenticate(ctx, sign("test-secret", noExpiry, jwt.SigningMethodHS256))
	assert.True(t, apperror.Is(err, apperror.Unauthorized))

	noEmail := valid
	noEmail.Email = ""
	_, err = svc.Authenticate(ctx, sign("test-secret", noEmail, jwt.SigningMethodHS256))
	assert.Equal(t, "Unauthorized: Invalid token content", apperror.As(err).Message)

	ghost := valid
	ghost.ID = "0f0f0f0f-0000-4000-8000-000000000000"
	_, err = svc.Authenticate(ctx, sign("test-secret", ghost, jwt.SigningMethodHS256))
	assert.Equal(t, "Unauthorized: User not found", apperror.As(err).Message)

	_, err = svc.Authenticate(ctx, "not.a.jwt")
	assert.True(t, apperror.Is(err, apperror.Unauthorized))
}
