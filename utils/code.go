package utils

import (
	"crypto/rand"
	"math/big"
)

// Alfabet tanpa karakter yang mudah tertukar (0/O, 1/I/L)
const codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"

const codeLength = 8

// GenerateChannelCode membuat channel code acak untuk team baru.
// Keunikan dijamin oleh unique index di database, bukan di sini;
// caller harus retry kalau kena duplicate.
func GenerateChannelCode() (string, error) {
	buf := make([]byte, codeLength)
	max := big.NewInt(int64(len(codeAlphabet)))

	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}

	return string(buf), nil
}
