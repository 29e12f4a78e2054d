package utils

import (
	"crypto/rand"
	"math/big"
)

func GenerateSecureOTP(length int) (string, error) {
	const otpChars = "0123456789"
	buffer := make([]byte, length)
	max := big.NewInt(int64(len(otpChars)))

	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buffer[i] = otpChars[n.Int64()]
	}

	return string(buffer), nil
}
