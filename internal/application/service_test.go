package application_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/securevault/securevault/internal/adapters/security"
	"github.com/securevault/securevault/internal/application"
	"github.com/securevault/securevault/internal/domain"
	"github.com/securevault/securevault/internal/ports"
)

const testPassword = "SecurePass123"

func TestRegisterLoginRefreshLogout(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	registerRes, err := f.service.Register(ctx, application.RegisterRequest{
		Email:     "user@example.com",
		Password:  testPassword,
		FirstName: "Test",
		LastName:  "User",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if registerRes.UserID == uuid.Nil {
		t.Fatalf("register returned empty user id")
	}

	loginRes, err := f.service.Login(ctx, application.LoginRequest{
		Email:     "user@example.com",
		Password:  testPassword,
		IPAddress: "127.0.0.1",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if loginRes.AccessToken == "" || loginRes.RefreshToken == "" {
		t.Fatalf("login should return both tokens")
	}

	refreshRes, err := f.service.Refresh(ctx, loginRes.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if refreshRes.RefreshToken == "" || refreshRes.RefreshToken == loginRes.RefreshToken {
		t.Fatalf("refresh should return a new refresh token")
	}

	// The rotated token is single-use: presenting it again must fail.
	if _, err := f.service.Refresh(ctx, loginRes.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked for reused refresh token, got %v", err)
	}

	if err := f.service.Logout(ctx, refreshRes.AccessToken, refreshRes.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}
	if _, err := f.service.Refresh(ctx, refreshRes.RefreshToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected revoked refresh token after logout, got %v", err)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Register(ctx, application.RegisterRequest{
		Email:    "known@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	_, wrongPassErr := f.service.Login(ctx, application.LoginRequest{
		Email:    "known@example.com",
		Password: "WrongSecret999",
	})
	_, unknownErr := f.service.Login(ctx, application.LoginRequest{
		Email:    "unknown@example.com",
		Password: testPassword,
	})

	if !errors.Is(wrongPassErr, domain.ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", wrongPassErr)
	}
	if !errors.Is(unknownErr, domain.ErrInvalidCredentials) {
		t.Fatalf("unknown email: got %v", unknownErr)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	req := application.RegisterRequest{Email: "dup@example.com", Password: testPassword}
	if _, err := f.service.Register(ctx, req); err != nil {
		t.Fatalf("first register failed: %v", err)
	}
	if _, err := f.service.Register(ctx, req); !errors.Is(err, domain.ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}
}

func TestRegisterNormalizesEmail(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	res, err := f.service.Register(ctx, application.RegisterRequest{
		Email:    "  User@Example.COM ",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if res.Email != "user@example.com" {
		t.Fatalf("email not normalized: %s", res.Email)
	}
	if _, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "user@example.com",
		Password: testPassword,
	}); err != nil {
		t.Fatalf("login with normalized email failed: %v", err)
	}
}

func TestConcurrentRefreshExactlyOneWins(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	loginRes := f.registerAndLogin(t, "race@example.com")

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.service.Refresh(ctx, loginRes.RefreshToken)
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		if !errors.Is(err, domain.ErrTokenRevoked) {
			t.Fatalf("loser should observe ErrTokenRevoked, got %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("expected exactly one winning rotation, got %d", winners)
	}
}

func TestRefreshRejectsUnknownAndExpired(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.service.Refresh(ctx, "does-not-exist"); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("unknown token: expected ErrInvalidToken, got %v", err)
	}
	if _, err := f.service.Refresh(ctx, ""); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("empty token: expected ErrInvalidToken, got %v", err)
	}

	registerRes, err := f.service.Register(ctx, application.RegisterRequest{
		Email:    "stale@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	now := time.Now().UTC()
	if _, err := f.refreshTokens.Create(ctx, registerRes.UserID, "stale-token", now.Add(-2*time.Hour), now.Add(-time.Hour)); err != nil {
		t.Fatalf("seed expired token: %v", err)
	}
	if _, err := f.service.Refresh(ctx, "stale-token"); !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expired token: expected ErrTokenExpired, got %v", err)
	}
}

func TestLogoutDeniesAccessTokenForRemainingLifetime(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	loginRes := f.registerAndLogin(t, "logout@example.com")

	claims, err := f.service.ValidateAccess(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("access token should validate before logout: %v", err)
	}

	if err := f.service.Logout(ctx, loginRes.AccessToken, loginRes.RefreshToken); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	ttl, denied := f.denylist.entry(claims.TokenID)
	if !denied {
		t.Fatalf("expected jti %s on the denylist", claims.TokenID)
	}
	if ttl <= 0 || ttl > 15*time.Minute {
		t.Fatalf("denylist ttl should match remaining lifetime, got %v", ttl)
	}

	if _, err := f.service.ValidateAccess(ctx, loginRes.AccessToken); !errors.Is(err, domain.ErrTokenRevoked) {
		t.Fatalf("expected ErrTokenRevoked after logout, got %v", err)
	}
}

func TestLogoutRequiresValidAccessToken(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	if err := f.service.Logout(ctx, "garbage", "whatever"); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestTotpStepUpFlow(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	loginRes := f.registerAndLogin(t, "mfa@example.com")

	setupRes, err := f.service.SetupTOTP(ctx, loginRes.AccessToken)
	if err != nil {
		t.Fatalf("setup totp failed: %v", err)
	}
	if setupRes.Secret == "" || !strings.HasPrefix(setupRes.QRCodeURI, "otpauth://totp/") {
		t.Fatalf("unexpected setup response: %+v", setupRes)
	}

	// Until confirm succeeds the account is pending: login still returns
	// full tokens.
	midSetup, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "mfa@example.com",
		Password: testPassword,
	})
	if err != nil || midSetup.TotpRequired {
		t.Fatalf("pending totp must not gate login: res=%+v err=%v", midSetup, err)
	}

	if err := f.service.ConfirmTOTP(ctx, loginRes.AccessToken, "000000"); !errors.Is(err, domain.ErrTotpInvalid) {
		t.Fatalf("wrong code should keep account pending, got %v", err)
	}
	if err := f.service.ConfirmTOTP(ctx, loginRes.AccessToken, f.totp.goodCode); err != nil {
		t.Fatalf("confirm totp failed: %v", err)
	}

	stepUp, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "mfa@example.com",
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if !stepUp.TotpRequired {
		t.Fatalf("expected step-up challenge after enabling totp")
	}
	if stepUp.AccessToken != "" || stepUp.RefreshToken != "" {
		t.Fatalf("tokens must be withheld until the code is verified")
	}

	if _, err := f.service.VerifyTOTPLogin(ctx, application.TotpLoginRequest{
		Email: "mfa@example.com",
		Code:  "999999",
	}); !errors.Is(err, domain.ErrTotpInvalid) {
		t.Fatalf("wrong step-up code: expected ErrTotpInvalid, got %v", err)
	}

	full, err := f.service.VerifyTOTPLogin(ctx, application.TotpLoginRequest{
		Email: "mfa@example.com",
		Code:  f.totp.goodCode,
	})
	if err != nil {
		t.Fatalf("verify totp login failed: %v", err)
	}
	if full.AccessToken == "" || full.RefreshToken == "" {
		t.Fatalf("expected full token pair after step-up")
	}

	if err := f.service.DisableTOTP(ctx, full.AccessToken, f.totp.goodCode); err != nil {
		t.Fatalf("disable totp failed: %v", err)
	}
	plain, err := f.service.Login(ctx, application.LoginRequest{
		Email:    "mfa@example.com",
		Password: testPassword,
	})
	if err != nil || plain.TotpRequired {
		t.Fatalf("login after disable should not require step-up: res=%+v err=%v", plain, err)
	}
}

func TestVerifyTOTPLoginWithoutEnabledTotp(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.registerAndLogin(t, "plain@example.com")
	if _, err := f.service.VerifyTOTPLogin(ctx, application.TotpLoginRequest{
		Email: "plain@example.com",
		Code:  f.totp.goodCode,
	}); !errors.Is(err, domain.ErrTotpInvalid) {
		t.Fatalf("expected ErrTotpInvalid, got %v", err)
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	users := &fakeUsers{
		byEmail: make(map[string]domain.User),
		byID:    make(map[uuid.UUID]domain.User),
	}
	refreshTokens := &fakeRefreshTokens{byToken: make(map[string]domain.RefreshToken)}
	denylist := &fakeDenylist{ttls: make(map[string]time.Duration)}
	totp := &fakeTOTP{goodCode: "123456"}

	signer, err := security.NewEphemeralRSASigner("test-key")
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			DefaultRole:     domain.RoleUser,
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,
		},
		Users:         users,
		RefreshTokens: refreshTokens,
		Denylist:      denylist,
		Hasher:        &fakeHasher{},
		TokenSigner:   signer,
		TOTP:          totp,
		Audit:         &fakeAudit{},
	})

	return &fixture{
		service:       svc,
		users:         users,
		refreshTokens: refreshTokens,
		denylist:      denylist,
		totp:          totp,
	}
}

type fixture struct {
	service       *application.Service
	users         *fakeUsers
	refreshTokens *fakeRefreshTokens
	denylist      *fakeDenylist
	totp          *fakeTOTP
}

func (f *fixture) registerAndLogin(t *testing.T, email string) application.AuthResponse {
	t.Helper()
	ctx := context.Background()
	if _, err := f.service.Register(ctx, application.RegisterRequest{
		Email:    email,
		Password: testPassword,
	}); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	res, err := f.service.Login(ctx, application.LoginRequest{
		Email:    email,
		Password: testPassword,
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]domain.User
	byID    map[uuid.UUID]domain.User
}

func (f *fakeUsers) Create(_ context.Context, params ports.CreateUserParams) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byEmail[params.Email]; ok {
		return domain.User{}, domain.ErrEmailExists
	}
	u := domain.User{
		UserID:       uuid.New(),
		Email:        params.Email,
		PasswordHash: params.PasswordHash,
		FirstName:    params.FirstName,
		LastName:     params.LastName,
		Role:         params.Role,
		CreatedAt:    params.RegisteredAt,
		UpdatedAt:    params.RegisteredAt,
	}
	f.byEmail[u.Email] = u
	f.byID[u.UserID] = u
	return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, userID uuid.UUID) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) UpdateTOTP(_ context.Context, userID uuid.UUID, secret *string, enabled bool, updatedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.TOTPSecret = secret
	u.TOTPEnabled = enabled
	u.UpdatedAt = updatedAt
	f.byID[userID] = u
	f.byEmail[u.Email] = u
	return nil
}

type fakeRefreshTokens struct {
	mu      sync.Mutex
	byToken map[string]domain.RefreshToken
}

func (f *fakeRefreshTokens) Create(_ context.Context, userID uuid.UUID, token string, issuedAt, expiresAt time.Time) (domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := domain.RefreshToken{
		TokenID:   uuid.New(),
		Token:     token,
		UserID:    userID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}
	f.byToken[token] = rec
	return rec, nil
}

func (f *fakeRefreshTokens) GetByToken(_ context.Context, token string) (domain.RefreshToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byToken[token]
	if !ok {
		return domain.RefreshToken{}, domain.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRefreshTokens) Revoke(_ context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.byToken[token]
	if !ok {
		return domain.ErrInvalidToken
	}
	if rec.Revoked {
		return domain.ErrTokenRevoked
	}
	rec.Revoked = true
	f.byToken[token] = rec
	return nil
}

func (f *fakeRefreshTokens) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for token, rec := range f.byToken {
		if rec.ExpiresAt.Before(before) {
			delete(f.byToken, token)
			deleted++
		}
	}
	return deleted, nil
}

type fakeDenylist struct {
	mu   sync.Mutex
	ttls map[string]time.Duration
}

func (f *fakeDenylist) Deny(_ context.Context, jti string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.ttls[jti]; !ok || ttl > existing {
		f.ttls[jti] = ttl
	}
	return nil
}

func (f *fakeDenylist) IsDenied(_ context.Context, jti string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.ttls[jti]
	return ok, nil
}

func (f *fakeDenylist) entry(jti string) (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ttl, ok := f.ttls[jti]
	return ttl, ok
}

type fakeHasher struct{}

func (f *fakeHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (f *fakeHasher) Compare(hash, password string) error {
	if hash != "hashed:"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeTOTP struct {
	goodCode string
}

func (f *fakeTOTP) GenerateSecret() (string, error) {
	return "JBSWY3DPEHPK3PXP", nil
}

func (f *fakeTOTP) VerifyCode(_ string, code string) bool {
	return code == f.goodCode
}

func (f *fakeTOTP) ProvisioningURI(secret, email string) string {
	return "otpauth://totp/SecureVault:" + email + "?secret=" + secret
}

type fakeAudit struct {
	mu     sync.Mutex
	events []ports.AuditEvent
}

func (f *fakeAudit) Publish(_ context.Context, event ports.AuditEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}
