package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	totpDigits     = 6
	totpPeriod     = 30
	totpSkewSteps  = 1
	totpSecretSize = 20
	totpIssuer     = "SecureVault"
)

// TOTP verifies RFC 6238 one-time codes: HMAC-SHA1, 6 digits, 30-second
// steps, with a clock-skew tolerance of one step either side.
type TOTP struct {
	nowFn func() time.Time
}

func NewTOTP() *TOTP {
	return &TOTP{nowFn: time.Now}
}

// GenerateSecret returns a fresh 160-bit shared secret in base32 without
// padding, the format authenticator apps accept.
func (t *TOTP) GenerateSecret() (string, error) {
	raw := make([]byte, totpSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw), nil
}

// VerifyCode accepts the code for the current step and the immediately
// adjacent steps. A code from two or more steps away fails.
func (t *TOTP) VerifyCode(secret, code string) bool {
	code = strings.TrimSpace(code)
	if len(code) != totpDigits {
		return false
	}
	counter := t.nowFn().Unix() / totpPeriod
	for offset := int64(-totpSkewSteps); offset <= totpSkewSteps; offset++ {
		expected, err := hotp(secret, counter+offset)
		if err != nil {
			return false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return true
		}
	}
	return false
}

// ProvisioningURI renders the otpauth URI encoded into the setup QR code.
func (t *TOTP) ProvisioningURI(secret, email string) string {
	return fmt.Sprintf(
		"otpauth://totp/%s:%s?secret=%s&issuer=%s&algorithm=SHA1&digits=%d&period=%d",
		totpIssuer, url.QueryEscape(email), secret, totpIssuer, totpDigits, totpPeriod,
	)
}

// hotp computes the RFC 4226 dynamic-truncation code for one counter value.
func hotp(secret string, counter int64) (string, error) {
	key, err := base32.StdEncoding.WithPadding(base32.NoPadding).
		DecodeString(strings.ToUpper(strings.TrimRight(secret, "=")))
	if err != nil {
		return "", fmt.Errorf("decode secret: %w", err)
	}

	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for i := 0; i < totpDigits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", totpDigits, value%mod), nil
}
