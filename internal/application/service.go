package application

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/securevault/securevault/internal/domain"
	"github.com/securevault/securevault/internal/ports"
)

// Service orchestrates the credential lifecycle: registration, password
// login with TOTP step-up, single-use refresh rotation and logout-time
// revocation. All cross-request coordination goes through the refresh-token
// ledger and the denylist; the service itself holds no mutable state.
type Service struct {
	cfg           Config
	users         ports.UserRepository
	refreshTokens ports.RefreshTokenRepository
	denylist      ports.DenylistStore
	hasher        ports.PasswordHasher
	tokenSigner   ports.TokenSigner
	totp          ports.TOTPProvider
	audit         ports.AuditPublisher
	nowFn         func() time.Time
}

type Dependencies struct {
	Config        Config
	Users         ports.UserRepository
	RefreshTokens ports.RefreshTokenRepository
	Denylist      ports.DenylistStore
	Hasher        ports.PasswordHasher
	TokenSigner   ports.TokenSigner
	TOTP          ports.TOTPProvider
	Audit         ports.AuditPublisher
}

func NewService(deps Dependencies) *Service {
	return &Service{
		cfg:           deps.Config,
		users:         deps.Users,
		refreshTokens: deps.RefreshTokens,
		denylist:      deps.Denylist,
		hasher:        deps.Hasher,
		tokenSigner:   deps.TokenSigner,
		totp:          deps.TOTP,
		audit:         deps.Audit,
		nowFn:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return RegisterResponse{}, err
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return RegisterResponse{}, err
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return RegisterResponse{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, ports.CreateUserParams{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         s.cfg.DefaultRole,
		RegisteredAt: s.nowFn(),
	})
	if err != nil {
		return RegisterResponse{}, err
	}

	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       user.UserID,
		Action:       "USER_REGISTERED",
		ResourceType: "USER",
		ResourceID:   user.UserID,
		Status:       "SUCCESS",
		Description:  "User registered: " + user.Email,
	})

	// Registration establishes no session; the client must log in.
	return RegisterResponse{
		UserID:    user.UserID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      string(user.Role),
		Message:   "Registration successful",
	}, nil
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// Same failure as a wrong password so callers cannot probe for accounts.
		return AuthResponse{}, domain.ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		s.audit.Publish(ctx, ports.AuditEvent{
			UserID:       user.UserID,
			Action:       "USER_LOGIN_FAILED",
			ResourceType: "USER",
			ResourceID:   user.UserID,
			Status:       "FAILURE",
			Description:  "Login failed for: " + user.Email,
			IPAddress:    req.IPAddress,
		})
		return AuthResponse{}, domain.ErrInvalidCredentials
	}

	if user.TOTPEnabled {
		// Password stage passed; withhold both tokens until the code checks out.
		return AuthResponse{
			Email:        user.Email,
			TotpRequired: true,
			Message:      "2FA verification required",
		}, nil
	}

	res, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResponse{}, err
	}
	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       user.UserID,
		Action:       "USER_LOGIN",
		ResourceType: "USER",
		ResourceID:   user.UserID,
		Status:       "SUCCESS",
		Description:  "User logged in: " + user.Email,
		IPAddress:    req.IPAddress,
	})
	return res, nil
}

// Refresh rotates the presented refresh token: the old row is revoked with a
// conditional update before any replacement is issued, so a concurrent
// second rotation of the same token observes revoked=true and fails.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (AuthResponse, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return AuthResponse{}, domain.ErrInvalidToken
	}

	rec, err := s.refreshTokens.GetByToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResponse{}, domain.ErrInvalidToken
		}
		return AuthResponse{}, err
	}
	if rec.Revoked {
		return AuthResponse{}, domain.ErrTokenRevoked
	}
	if rec.Expired(s.nowFn()) {
		return AuthResponse{}, domain.ErrTokenExpired
	}

	if err := s.refreshTokens.Revoke(ctx, refreshToken); err != nil {
		return AuthResponse{}, err
	}

	user, err := s.users.GetByID(ctx, rec.UserID)
	if err != nil {
		return AuthResponse{}, err
	}

	res, err := s.issueTokens(ctx, user)
	if err != nil {
		return AuthResponse{}, err
	}
	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       user.UserID,
		Action:       "TOKEN_REFRESHED",
		ResourceType: "USER",
		ResourceID:   user.UserID,
		Status:       "SUCCESS",
		Description:  "Token refreshed for: " + user.Email,
	})
	return res, nil
}

// Logout revokes the presented refresh token and denies the access token's
// jti for exactly its remaining lifetime, after which the denylist entry
// self-expires together with the token's own validity.
func (s *Service) Logout(ctx context.Context, accessToken, refreshToken string) error {
	claims, err := s.tokenSigner.Verify(accessToken)
	if err != nil {
		return domain.ErrUnauthorized
	}

	if err := s.refreshTokens.Revoke(ctx, strings.TrimSpace(refreshToken)); err != nil {
		if errors.Is(err, domain.ErrTokenRevoked) {
			// Repeated logout with the same refresh token is harmless.
		} else {
			return err
		}
	}

	if err := s.denylist.Deny(ctx, claims.TokenID, claims.RemainingTTL(s.nowFn())); err != nil {
		return fmt.Errorf("deny access token: %w", err)
	}

	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       claims.UserID,
		Action:       "USER_LOGOUT",
		ResourceType: "USER",
		ResourceID:   claims.UserID,
		Status:       "SUCCESS",
		Description:  "User logged out: " + claims.Email,
	})
	return nil
}

// ValidateAccess verifies a token and additionally consults the denylist.
// The edge skips the denylist on purpose; callers that need immediate
// revocation semantics come through here.
func (s *Service) ValidateAccess(ctx context.Context, accessToken string) (ports.AccessClaims, error) {
	claims, err := s.tokenSigner.Verify(accessToken)
	if err != nil {
		return ports.AccessClaims{}, domain.ErrUnauthorized
	}
	denied, err := s.denylist.IsDenied(ctx, claims.TokenID)
	if err != nil {
		return ports.AccessClaims{}, err
	}
	if denied {
		return ports.AccessClaims{}, domain.ErrTokenRevoked
	}
	return claims, nil
}

func (s *Service) PublicJWKs() ([]map[string]any, error) {
	return s.tokenSigner.PublicJWKs()
}

// issueTokens signs a fresh access token and persists a new active refresh
// row. The refresh token is an opaque random string with no embedded
// structure, deliberately unrelated to the access-token format.
func (s *Service) issueTokens(ctx context.Context, user domain.User) (AuthResponse, error) {
	now := s.nowFn()
	accessToken, _, err := s.tokenSigner.IssueAccess(user, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("sign access token: %w", err)
	}

	refreshToken := randomHex(32)
	if _, err := s.refreshTokens.Create(ctx, user.UserID, refreshToken, now, now.Add(s.cfg.RefreshTokenTTL)); err != nil {
		return AuthResponse{}, fmt.Errorf("persist refresh token: %w", err)
	}

	return AuthResponse{
		UserID:       user.UserID,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		Role:         string(user.Role),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Message:      "Login successful",
	}, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if _, err := mail.ParseAddress(trimmed); err != nil {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func randomHex(bytesLen int) string {
	raw := make([]byte, bytesLen)
	_, _ = rand.Read(raw)
	return hex.EncodeToString(raw)
}
