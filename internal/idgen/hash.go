// Package idgen generates hash-based issue identifiers.
package idgen

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Bounds on the number of base36 digits in a generated ID.
const (
	MinLength = 3
	MaxLength = 8
)

// GenerateHashID creates a deterministic ID of the form "<prefix>-<digits>".
// The digits are the base36 encoding of a SHA-256 prefix over the creation
// inputs. Callers resolve collisions by retrying with a different nonce.
func GenerateHashID(prefix, title, description, creator string, timestamp time.Time, length, nonce int) string {
	if length < MinLength {
		length = MinLength
	}
	if length > MaxLength {
		length = MaxLength
	}

	content := fmt.Sprintf("%s|%s|%s|%d|%d", title, description, creator, timestamp.UnixNano(), nonce)
	sum := sha256.Sum256([]byte(content))

	return fmt.Sprintf("%s-%s", prefix, EncodeBase36(sum[:hashBytesForLength(length)], length))
}

// hashBytesForLength returns how many digest bytes carry enough entropy for
// the requested digit count (36^L needs roughly L*5.17 bits).
func hashBytesForLength(length int) int {
	switch length {
	case 3:
		return 2
	case 4:
		return 3
	case 5, 6:
		return 4
	default:
		return 5
	}
}

// EncodeBase36 encodes data as lowercase base36, left-padded with '0' to
// length and truncated to the least-significant length digits.
func EncodeBase36(data []byte, length int) string {
	digits := new(big.Int).SetBytes(data).Text(36)
	if len(digits) < length {
		digits = strings.Repeat("0", length-len(digits)) + digits
	}
	if len(digits) > length {
		digits = digits[len(digits)-length:]
	}
	return digits
}
