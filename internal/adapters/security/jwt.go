package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/securevault/securevault/internal/domain"
	"github.com/securevault/securevault/internal/ports"
)

// RSASigner implements RS256 access-token signing and verification.
// Keys are held at adapter level so the application layer stays
// crypto-library agnostic.
type RSASigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewRSASigner builds a signer from configured PEM keys.
func NewRSASigner(kid, privateKeyPEM, publicKeyPEM string) (*RSASigner, error) {
	if kid == "" {
		return nil, errors.New("jwt key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("jwt private/public keys are required")
	}

	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &RSASigner{kid: kid, privateKey: priv, publicKey: pub}, nil
}

// NewEphemeralRSASigner creates an in-memory keypair for local/dev use.
// This exists to unblock runtime startup when static keys are intentionally absent.
func NewEphemeralRSASigner(kid string) (*RSASigner, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &RSASigner{
		kid:        kid,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
	}, nil
}

type accessJWTClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// IssueAccess signs a short-lived access token with a fresh jti. The jti is
// the key later used to deny the token on logout.
func (s *RSASigner) IssueAccess(user domain.User, now time.Time, ttl time.Duration) (string, ports.AccessClaims, error) {
	jti := uuid.NewString()
	expiresAt := now.Add(ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, accessJWTClaims{
		Email: user.Email,
		Role:  string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID.String(),
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	token.Header["kid"] = s.kid

	raw, err := token.SignedString(s.privateKey)
	if err != nil {
		return "", ports.AccessClaims{}, err
	}
	return raw, ports.AccessClaims{
		UserID:    user.UserID,
		Email:     user.Email,
		Role:      user.Role,
		TokenID:   jti,
		IssuedAt:  now.UTC(),
		ExpiresAt: expiresAt.UTC(),
		KeyID:     s.kid,
	}, nil
}

func (s *RSASigner) Verify(raw string) (ports.AccessClaims, error) {
	return verifyWithKey(raw, s.publicKey)
}

// PublicJWKs exposes the verification key in JWK form so the edge can fetch
// it without a shared filesystem.
func (s *RSASigner) PublicJWKs() ([]map[string]any, error) {
	e := big.NewInt(int64(s.publicKey.E)).Bytes()
	n := s.publicKey.N.Bytes()

	return []map[string]any{
		{
			"kid": s.kid,
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(n),
			"e":   base64.RawURLEncoding.EncodeToString(e),
		},
	}, nil
}

// PublicKeyPEM renders the verification key for distribution to the gateway.
func (s *RSASigner) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(s.publicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

// RSAVerifier is the verify-only counterpart used at the edge, which holds
// no private key by design.
type RSAVerifier struct {
	publicKey *rsa.PublicKey
}

func NewRSAVerifier(publicKeyPEM string) (*RSAVerifier, error) {
	if publicKeyPEM == "" {
		return nil, errors.New("jwt public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &RSAVerifier{publicKey: pub}, nil
}

func (v *RSAVerifier) Verify(raw string) (ports.AccessClaims, error) {
	return verifyWithKey(raw, v.publicKey)
}

// verifyWithKey maps every parse, signature and expiry failure onto the same
// sentinel. Callers must not be able to tell a forged token from an expired one.
func verifyWithKey(raw string, key *rsa.PublicKey) (ports.AccessClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &accessJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	if err != nil {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*accessJWTClaims)
	if !ok || !parsed.Valid {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil || claims.ID == "" {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}
	if !domain.ValidRole(claims.Role) {
		return ports.AccessClaims{}, domain.ErrInvalidToken
	}

	kid, _ := parsed.Header["kid"].(string)

	return ports.AccessClaims{
		UserID:    userID,
		Email:     claims.Email,
		Role:      domain.Role(claims.Role),
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
		KeyID:     kid,
	}, nil
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
