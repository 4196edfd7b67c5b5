// Package housecode generates and validates human-shareable house join codes.
package housecode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"
)

// Codes look like ECO-2024-AB12CD: a literal prefix, the calendar year,
// and six random characters.
const (
	prefix       = "ECO"
	randomLength = 6
	alphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var codePattern = regexp.MustCompile(`^ECO-\d{4}-[A-Z0-9]{6}$`)

// Generate returns a candidate house code for the given moment. Uniqueness is
// not guaranteed here; the caller inserts against the unique constraint and
// retries on collision.
func Generate(now time.Time) (string, error) {
	b := make([]byte, randomLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate house code: %w", err)
		}
		b[i] = alphabet[n.Int64()]
	}
	return fmt.Sprintf("%s-%04d-%s", prefix, now.Year(), b), nil
}

// Valid reports whether code, after canonicalization, is a well-formed house
// code. Callers check this before any lookup so malformed codes never cost a
// query.
func Valid(code string) bool {
	return codePattern.MatchString(Normalize(code))
}

// Normalize trims and uppercases a code. Codes are case-insensitive on input
// and stored uppercase.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
