package tool

import (
	"crypto/rand"
	"strings"

	"github.com/google/uuid"
)

func GenerateUUIDV7() string {
	return uuid.Must(uuid.NewV7()).String()
}

// giftCardAlphabet avoids ambiguous characters (0/O, 1/I/L).
const giftCardAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

// GenerateGiftCardCode returns a code like "GC-XXXX-XXXX-XXXX".
// Uniqueness is enforced by the DB; callers retry on collision.
func GenerateGiftCardCode() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		copy(buf, []byte(strings.ReplaceAll(uuid.NewString(), "-", "")))
	}
	var b strings.Builder
	b.WriteString("GC")
	for i, c := range buf {
		if i%4 == 0 {
			b.WriteByte('-')
		}
		b.WriteByte(giftCardAlphabet[int(c)%len(giftCardAlphabet)])
	}
	return b.String()
}
