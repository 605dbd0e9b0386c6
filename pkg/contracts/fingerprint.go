package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// Fingerprint computes the deterministic 256-bit schema digest per the
// canonical form: fields sorted by name, each serialized as
// name|type|nullable|max_length|pii|enum, joined with newlines. Reordering
// the input schema never changes the result; renaming or retyping any
// field always does.
func Fingerprint(fields []Field) string {
	sorted := sortedSchema(fields)

	var b strings.Builder
	for i, f := range sorted {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(fieldCanonicalLine(f))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func fieldCanonicalLine(f Field) string {
	maxLen := ""
	if f.MaxLength != nil {
		maxLen = strconv.Itoa(*f.MaxLength)
	}
	return strings.Join([]string{
		f.Name,
		string(f.Type),
		strconv.FormatBool(f.Nullable),
		maxLen,
		strconv.FormatBool(f.PII),
		strings.Join(f.Enum, ","),
	}, "|")
}
