package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	customjwt "github.com/magabrotheeeer/cleancut/internal/lib/jwt"
	"github.com/magabrotheeeer/cleancut/internal/models"
	services "github.com/magabrotheeeer/cleancut/internal/services/auth"
)

// Мок для jwt.Maker
type JwtMakerMock struct {
	mock.Mock
}

func (m *JwtMakerMock) GenerateToken(subject, email, appRole string) (string, error) {
	args := m.Called(subject, email, appRole)
	return args.String(0), args.Error(1)
}

func (m *JwtMakerMock) ParseToken(token string) (*customjwt.Claims, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*customjwt.Claims), args.Error(1)
}

func TestAuthService_ValidateToken(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		setupMocks func(j *JwtMakerMock)
		want       *models.Identity
		wantErr    bool
	}{
		{
			name:  "valid token",
			token: "valid.jwt.token",
			setupMocks: func(j *JwtMakerMock) {
				j.On("ParseToken", "valid.jwt.token").Return(&customjwt.Claims{
					Email:       "user@cleancut.io",
					AppMetadata: customjwt.AppMetadata{Role: "admin"},
					RegisteredClaims: jwt.RegisteredClaims{
						Subject:   "acc-1",
						ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
					},
				}, nil).Once()
			},
			want: &models.Identity{AccountID: "acc-1", Email: "user@cleancut.io", Role: "admin"},
		},
		{
			name:  "invalid token",
			token: "invalid.jwt.token",
			setupMocks: func(j *JwtMakerMock) {
				j.On("ParseToken", "invalid.jwt.token").Return(nil, errors.New("invalid token")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jwtMock := new(JwtMakerMock)
			tt.setupMocks(jwtMock)
			svc := services.NewAuthService(jwtMock, "admin", nil)

			got, err := svc.ValidateToken(context.Background(), tt.token)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			jwtMock.AssertExpectations(t)
		})
	}
}

func TestAuthService_ValidateToken_RealMaker(t *testing.T) {
	maker := customjwt.NewJWTMaker("secret", time.Minute)
	svc := services.NewAuthService(maker, "admin", nil)

	token, err := maker.GenerateToken("acc-42", "someone@cleancut.io", "")
	require.NoError(t, err)

	id, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "acc-42", id.AccountID)
	assert.Equal(t, "someone@cleancut.io", id.Email)
	assert.Empty(t, id.Role)

	other := customjwt.NewJWTMaker("other-secret", time.Minute)
	forged, err := other.GenerateToken("acc-42", "someone@cleancut.io", "admin")
	require.NoError(t, err)
	_, err = svc.ValidateToken(context.Background(), forged)
	assert.Error(t, err)
}

func TestAuthService_IsAdmin(t *testing.T) {
	svc := services.NewAuthService(new(JwtMakerMock), "admin", []string{" Boss@CleanCut.io ", ""})

	tests := []struct {
		name string
		id   models.Identity
		want bool
	}{
		{"admin claim", models.Identity{AccountID: "a", Role: "admin"}, true},
		{"allowlisted email", models.Identity{AccountID: "b", Email: "boss@cleancut.io"}, true},
		{"allowlisted email other case", models.Identity{AccountID: "c", Email: "BOSS@cleancut.IO"}, true},
		{"both", models.Identity{AccountID: "d", Email: "boss@cleancut.io", Role: "admin"}, true},
		{"regular user", models.Identity{AccountID: "e", Email: "user@cleancut.io"}, false},
		{"other role", models.Identity{AccountID: "f", Role: "support"}, false},
		{"no email no role", models.Identity{AccountID: "g"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, svc.IsAdmin(tt.id))
		})
	}
}

func TestAuthService_IsAdmin_EmptyRoleDisablesClaim(t *testing.T) {
	svc := services.NewAuthService(new(JwtMakerMock), "", nil)
	assert.False(t, svc.IsAdmin(models.Identity{AccountID: "a", Role: ""}))
}
