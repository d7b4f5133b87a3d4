package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/securevault/securevault/internal/domain"
	"github.com/securevault/securevault/internal/ports"
)

// SetupTOTP generates and stores a new shared secret. The principal is now
// pending: the secret exists but step-up stays off until ConfirmTOTP proves
// the authenticator holds it. Calling setup again replaces the secret.
func (s *Service) SetupTOTP(ctx context.Context, accessToken string) (TotpSetupResponse, error) {
	claims, err := s.tokenSigner.Verify(accessToken)
	if err != nil {
		return TotpSetupResponse{}, domain.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return TotpSetupResponse{}, err
	}

	secret, err := s.totp.GenerateSecret()
	if err != nil {
		return TotpSetupResponse{}, fmt.Errorf("generate totp secret: %w", err)
	}
	if err := s.users.UpdateTOTP(ctx, user.UserID, &secret, false, s.nowFn()); err != nil {
		return TotpSetupResponse{}, err
	}

	return TotpSetupResponse{
		Secret:    secret,
		QRCodeURI: s.totp.ProvisioningURI(secret, user.Email),
	}, nil
}

// ConfirmTOTP enables step-up once the presented code matches the pending
// secret. On a wrong code the principal stays pending and may retry.
func (s *Service) ConfirmTOTP(ctx context.Context, accessToken, code string) error {
	claims, err := s.tokenSigner.Verify(accessToken)
	if err != nil {
		return domain.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return domain.ErrTotpNotConfigured
	}
	if !s.totp.VerifyCode(*user.TOTPSecret, code) {
		return domain.ErrTotpInvalid
	}
	if err := s.users.UpdateTOTP(ctx, user.UserID, user.TOTPSecret, true, s.nowFn()); err != nil {
		return err
	}

	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       user.UserID,
		Action:       "TOTP_ENABLED",
		ResourceType: "USER",
		ResourceID:   user.UserID,
		Status:       "SUCCESS",
		Description:  "TOTP enabled for user",
	})
	return nil
}

// VerifyTOTPLogin completes the step-up login path: the password stage
// already passed, and a valid code now releases the withheld token pair.
// State is not mutated here.
func (s *Service) VerifyTOTPLogin(ctx context.Context, req TotpLoginRequest) (AuthResponse, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return AuthResponse{}, domain.ErrInvalidCredentials
	}
	if !user.TOTPEnabled || user.TOTPSecret == nil {
		return AuthResponse{}, domain.ErrTotpInvalid
	}
	if !s.totp.VerifyCode(*user.TOTPSecret, strings.TrimSpace(req.Code)) {
		return AuthResponse{}, domain.ErrTotpInvalid
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
		Description:  "User logged in with 2FA: " + user.Email,
		IPAddress:    req.IPAddress,
	})
	return res, nil
}

// DisableTOTP turns step-up off and clears the secret; it demands a
// currently valid code so a hijacked session cannot silently weaken the
// account without the second factor.
func (s *Service) DisableTOTP(ctx context.Context, accessToken, code string) error {
	claims, err := s.tokenSigner.Verify(accessToken)
	if err != nil {
		return domain.ErrUnauthorized
	}
	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return err
	}
	if user.TOTPSecret == nil {
		return domain.ErrTotpNotConfigured
	}
	if !s.totp.VerifyCode(*user.TOTPSecret, code) {
		return domain.ErrTotpInvalid
	}
	if err := s.users.UpdateTOTP(ctx, user.UserID, nil, false, s.nowFn()); err != nil {
		return err
	}

	s.audit.Publish(ctx, ports.AuditEvent{
		UserID:       user.UserID,
		Action:       "TOTP_DISABLED",
		ResourceType: "USER",
		ResourceID:   user.UserID,
		Status:       "SUCCESS",
		Description:  "TOTP disabled for user",
	})
	return nil
}
