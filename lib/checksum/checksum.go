package checksum

import (
	"crypto/sha256"
	"errors"
)

var (
	ErrChecksumNotMatching = errors.New("given checksum does not match calculated checksum")
)

// CalculateCheckSum folds the first four bytes of the SHA-256 digest of data
// into an int.
func CalculateCheckSum(data []byte) int {
	result := 0
	digest := sha256.Sum256(data)

	for _, b := range digest[:4] {
		result = result<<8 | int(b)
	}

	return result
}

// Verify returns ErrChecksumNotMatching unless sum is the checksum of data.
func Verify(data []byte, sum int) error {
	if CalculateCheckSum(data) != sum {
		return ErrChecksumNotMatching
	}

	return nil
}
