package common

import (
	"crypto/rand"
	"math/big"
)

const alphanumeric = "abcdefghijklmnopqrstuvwxyz0123456789"

// RandomString returns a string of n characters drawn uniformly from
// lower-case letters and digits using crypto/rand.
//
// It returns an error if the random number generator fails.
func RandomString(n int) (string, error) {
	if n <= 0 {
		return "", nil
	}

	max := big.NewInt(int64(len(alphanumeric)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = alphanumeric[idx.Int64()]
	}

	return string(b), nil
}
