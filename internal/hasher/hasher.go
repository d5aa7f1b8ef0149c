package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// FileHash returns the hex SHA-256 of a file's bytes.
func FileHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// RowHash returns the hex SHA-256 of the ordered field values. Each value is
// trimmed and length-prefixed so ("ab", "c") and ("a", "bc") differ.
func RowHash(fields ...string) string {
	h := sha256.New()
	for _, f := range fields {
		f = strings.TrimSpace(f)
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
		h.Write([]byte{'|'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// TransactionID derives a stable id from a row hash and its source file.
func TransactionID(rowHash, sourceFile string) string {
	sum := sha256.Sum256([]byte(rowHash + "|" + sourceFile))
	return hex.EncodeToString(sum[:])[:32]
}

// NormalizeDescription is the single normalization used for the canonical
// description and for category cache keys: trimmed, upper-cased, inner
// whitespace collapsed.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}
