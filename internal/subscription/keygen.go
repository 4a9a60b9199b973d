// AngelaMos | 2026
// keygen.go

package subscription

import (
	"crypto/rand"
	"fmt"
	"strings"
)

const (
	keyPrefix        = "VDK"
	keySegmentLength = 8
	keyAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewKeyCode draws two independent 8-character base-36 segments from
// crypto/rand: VDK-XXXXXXXX-XXXXXXXX. Rejection sampling keeps the
// alphabet unbiased.
func NewKeyCode() (string, error) {
	first, err := randomSegment(keySegmentLength)
	if err != nil {
		return "", err
	}

	second, err := randomSegment(keySegmentLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s-%s-%s", keyPrefix, first, second), nil
}

func randomSegment(length int) (string, error) {
	// Largest multiple of len(keyAlphabet) below 256; bytes at or above
	// it are re-drawn to avoid modulo bias.
	const cutoff = byte(256 - 256%len(keyAlphabet))

	var sb strings.Builder
	sb.Grow(length)

	buf := make([]byte, length*2)
	for sb.Len() < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if sb.Len() == length {
				break
			}
			if b >= cutoff {
				continue
			}
			sb.WriteByte(keyAlphabet[int(b)%len(keyAlphabet)])
		}
	}

	return sb.String(), nil
}
