package accounts

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// ResetCodeLength is the number of digits in a password reset code
const ResetCodeLength = 6

var resetCodeSpace = big.NewInt(1_000_000)

// ResetState is the password reset state of an identity. The reset code
// lives on the identity itself, so there is at most one active code.
type ResetState string

const (
	ResetStateNoActiveCode ResetState = "no_active_code"
	ResetStateCodeIssued   ResetState = "code_issued"
	ResetStateCodeExpired  ResetState = "code_expired"
)

// CurrentResetState derives the reset state from the stored code and expiry
func CurrentResetState(identity *Identity, now time.Time) ResetState {
	if !identity.HasActiveResetCode() {
		return ResetStateNoActiveCode
	}

	if identity.ResetCodeExpiresAt == nil || now.After(*identity.ResetCodeExpiresAt) {
		return ResetStateCodeExpired
	}

	return ResetStateCodeIssued
}

// checkResetCode validates a supplied code against the stored one. A
// mismatch wins over expiry so a wrong guess never learns whether a code
// was outstanding.
func checkResetCode(identity *Identity, code string, now time.Time) error {
	if !identity.HasActiveResetCode() || !resetCodesEqual(*identity.ResetCode, code) {
		return ErrResetCodeIncorrect
	}

	if CurrentResetState(identity, now) != ResetStateCodeIssued {
		return ErrResetCodeExpired
	}

	return nil
}

// CodeGenerator returns a fresh reset code
type CodeGenerator func() (string, error)

// GenerateResetCode returns a uniformly distributed 6 digit code read from
// crypto/rand.
func GenerateResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, resetCodeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", ResetCodeLength, n.Int64()), nil
}

func resetCodesEqual(stored, supplied string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(supplied)) == 1
}

// resetCodeDigest binds a reset proof to one code issuance
func resetCodeDigest(id uuid.UUID, code string) string {
	sum := sha256.Sum256([]byte(id.String() + ":" + code))
	return hex.EncodeToString(sum[:])
}

func resetDigestsEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
