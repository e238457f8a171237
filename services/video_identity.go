package services

import (
	"crypto/sha256"
	"encoding/binary"
)

// DeriveVideoUID maps a user id to the unsigned 32-bit uid used by the video
// provider. The same user always gets the same uid.
func DeriveVideoUID(userID string) uint32 {
	sum := sha256.Sum256([]byte(userID))
	return binary.BigEndian.Uint32(sum[:4])
}
