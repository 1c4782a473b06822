package identity

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"streamgate/internal/core/domain"
	"streamgate/internal/infrastructure/repositories/memory"
	"streamgate/pkg/config"
)

const testSecret = "super-secret-jwt-key"

func seededProfiles() *memory.MemoryProfileRepository {
	profiles := memory.NewMemoryProfileRepository()
	profiles.Put(domain.Profile{ID: "admin-1", Email: "admin@example.com", Role: domain.RoleAdmin})
	profiles.Put(domain.Profile{ID: "student-1", Email: "s@example.com", Role: domain.RoleStudent})
	return profiles
}

func hs256Token(t *testing.T, secret, subject string, exp time.Time, mutate func(*AccessClaims)) string {
	t.Helper()
	claims := &AccessClaims{
		Email: "from-token@example.com",
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "https://auth.example.com",
			Audience:  gojwt.ClaimStrings{"authenticated"},
			ExpiresAt: gojwt.NewNumericDate(exp),
			IssuedAt:  gojwt.NewNumericDate(time.Now()),
		},
	}
	if mutate != nil {
		mutate(claims)
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestHS256Provider_Authenticate(t *testing.T) {
	provider := NewHS256Provider(testSecret, "https://auth.example.com", "authenticated", seededProfiles(), time.Second)
	hour := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		token    string
		wantRole domain.Role
		wantErr  error
	}{
		{"admin profile", hs256Token(t, testSecret, "admin-1", hour, nil), domain.RoleAdmin, nil},
		{"student profile", hs256Token(t, testSecret, "student-1", hour, nil), domain.RoleStudent, nil},
		{"no profile defaults to student", hs256Token(t, testSecret, "new-user", hour, nil), domain.RoleStudent, nil},
		{"wrong secret", hs256Token(t, "other-secret", "admin-1", hour, nil), "", domain.ErrUnauthenticated},
		{"expired", hs256Token(t, testSecret, "admin-1", time.Now().Add(-time.Minute), nil), "", domain.ErrUnauthenticated},
		{"wrong issuer", hs256Token(t, testSecret, "admin-1", hour, func(c *AccessClaims) { c.Issuer = "https://evil" }), "", domain.ErrUnauthenticated},
		{"wrong audience", hs256Token(t, testSecret, "admin-1", hour, func(c *AccessClaims) { c.Audience = gojwt.ClaimStrings{"anon"} }), "", domain.ErrUnauthenticated},
		{"no subject", hs256Token(t, testSecret, "", hour, nil), "", domain.ErrUnauthenticated},
		{"empty", "", "", domain.ErrUnauthenticated},
		{"garbage", "not.a.jwt", "", domain.ErrUnauthenticated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := provider.Authenticate(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRole, identity.Role)
		})
	}
}

func TestHS256Provider_RejectsNoneAlgorithm(t *testing.T) {
	provider := NewHS256Provider(testSecret, "", "", nil, time.Second)
	unsigned, err := gojwt.NewWithClaims(gojwt.SigningMethodNone, gojwt.RegisteredClaims{
		Subject:   "admin-1",
		ExpiresAt: gojwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(gojwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = provider.Authenticate(context.Background(), unsigned)
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

type failingProfiles struct{ calls int }

func (f *failingProfiles) GetByID(context.Context, domain.UserID) (*domain.Profile, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func (f *failingProfiles) Exists(context.Context, domain.UserID) (bool, error) {
	return false, errors.New("connection refused")
}

func (f *failingProfiles) List(context.Context) ([]*domain.Profile, error) {
	return nil, errors.New("connection refused")
}

func (f *failingProfiles) UpdateRole(context.Context, domain.UserID, domain.Role) (*domain.Profile, error) {
	return nil, errors.New("connection refused")
}

func TestHS256Provider_ProfileStoreDownIsNotUnauthenticated(t *testing.T) {
	profiles := &failingProfiles{}
	provider := NewHS256Provider(testSecret, "", "", profiles, time.Second)

	_, err := provider.Authenticate(context.Background(), hs256Token(t, testSecret, "student-1", time.Now().Add(time.Hour), nil))
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.NotErrorIs(t, err, domain.ErrUnauthenticated)
	assert.Equal(t, 2, profiles.calls)
}

type jwksFixture struct {
	server  *httptest.Server
	signKey jwk.Key
}

func newJWKSFixture(t *testing.T) *jwksFixture {
	t.Helper()
	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	signKey, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, signKey.Set(jwk.KeyIDKey, "key-1"))
	require.NoError(t, signKey.Set(jwk.AlgorithmKey, jwa.RS256))

	pub, err := jwk.PublicKeyOf(signKey)
	require.NoError(t, err)
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(pub))
	body, err := json.Marshal(set)
	require.NoError(t, err)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(server.Close)
	return &jwksFixture{server: server, signKey: signKey}
}

func (f *jwksFixture) token(t *testing.T, subject, issuer string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().
		Subject(subject).
		Issuer(issuer).
		Audience([]string{"streamgate"}).
		IssuedAt(time.Now()).
		Expiration(exp).
		Claim("email", subject+"@example.com").
		Build()
	require.NoError(t, err)

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, f.signKey))
	require.NoError(t, err)
	return string(signed)
}

func TestJWKSProvider_Authenticate(t *testing.T) {
	fixture := newJWKSFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider, err := NewJWKSProvider(ctx, fixture.server.URL, time.Minute, "https://issuer.example.com", "streamgate",
		seededProfiles(), time.Second, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)

	identity, err := provider.Authenticate(ctx, fixture.token(t, "admin-1", "https://issuer.example.com", time.Now().Add(time.Hour)))
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("admin-1"), identity.UserID)
	assert.True(t, identity.IsAdmin())
	assert.Equal(t, "admin-1@example.com", identity.Email)

	_, err = provider.Authenticate(ctx, fixture.token(t, "admin-1", "https://other-issuer", time.Now().Add(time.Hour)))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = provider.Authenticate(ctx, fixture.token(t, "admin-1", "https://issuer.example.com", time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)

	_, err = provider.Authenticate(ctx, hs256Token(t, testSecret, "admin-1", time.Now().Add(time.Hour), nil))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated, "a token from another key set is rejected")
}

func TestNew_SelectsMode(t *testing.T) {
	cfg := config.DefaultConfig()
	logger := zaptest.NewLogger(t).Sugar()

	_, err := New(context.Background(), cfg, nil, logger)
	assert.Error(t, err, "hs256 without a secret must not start")

	cfg.Identity.JWTSecret = testSecret
	provider, err := New(context.Background(), cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &HS256Provider{}, provider)

	fixture := newJWKSFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cfg.Identity.Mode = config.IdentityModeJWKS
	cfg.Identity.JWKSURL = fixture.server.URL
	provider, err = New(ctx, cfg, nil, logger)
	require.NoError(t, err)
	assert.IsType(t, &JWKSProvider{}, provider)
}
