package app

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"strings"
	"time"
)

const base36 = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newCode returns PREFIX-<base36 unix millis>-<n random base36 chars>.
func newCode(prefix string, now time.Time, n int) string {
	var sb strings.Builder
	sb.WriteString(prefix)
	sb.WriteByte('-')
	sb.WriteString(strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36)))
	sb.WriteByte('-')
	sb.WriteString(randomBase36(n))
	return sb.String()
}

func randomBase36(n int) string {
	radix := big.NewInt(int64(len(base36)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, radix)
		if err != nil {
			// crypto/rand does not fail on supported platforms.
			panic(err)
		}
		out[i] = base36[idx.Int64()]
	}
	return string(out)
}

func newCertificateNumber(now time.Time) string { return newCode("CERT", now, 4) }

func newInviteCode(now time.Time) string { return newCode("INV", now, 6) }
