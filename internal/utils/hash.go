package utils

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// CalculateDataMD5 returns the hex md5 of data, used to name uploaded files
func CalculateDataMD5(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

// CalculateSHA256 returns the hex sha256 over all parts in order.
// Each part is prefixed with its length so part boundaries are unambiguous.
func CalculateSHA256(parts ...[]byte) string {
	h := sha256.New()
	for _, p := range parts {
		binary.Write(h, binary.BigEndian, uint64(len(p)))
		h.Write(p)
	}
	return hex.EncodeToString(h.Sum(nil))
}
