package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
)

// HashObject computes the SHA-1 of the envelope "type len\0content", which is
// how every object in the store is named.
func HashObject(objType ObjectType, data []byte) Hash {
	h := sha1.New()
	fmt.Fprintf(h, "%s %d\x00", objType, len(data))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// HashBytes computes the raw SHA-1 of data as a lowercase hex Hash. Pack
// trailers use this form.
func HashBytes(data []byte) Hash {
	sum := sha1.Sum(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// ValidateHash checks that h is a well-formed 40-character lowercase hex
// SHA-1.
func ValidateHash(h Hash) error {
	s := string(h)
	if len(s) != HashHexLen {
		return fmt.Errorf("%w: hash length %d, expected %d", ErrInvalidHash, len(s), HashHexLen)
	}
	if strings.ToLower(s) != s {
		return fmt.Errorf("%w: hash must be lowercase", ErrInvalidHash)
	}
	if _, err := hex.DecodeString(s); err != nil {
		return fmt.Errorf("%w: non-hex characters", ErrInvalidHash)
	}
	return nil
}

// BytesToHex encodes raw digest bytes as a lowercase hex string.
func BytesToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// HexToBytes decodes an even-length hex string into raw bytes. Uppercase
// input is accepted and normalized.
func HexToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(strings.ToLower(s))
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return b, nil
}

// HashToRaw converts a hex Hash to its 20-byte binary form.
func HashToRaw(h Hash) ([]byte, error) {
	if err := ValidateHash(h); err != nil {
		return nil, err
	}
	return HexToBytes(string(h))
}

// RawToHash converts a 20-byte binary digest to its hex Hash form.
func RawToHash(b []byte) (Hash, error) {
	if len(b) != sha1.Size {
		return "", fmt.Errorf("%w: raw hash length %d, expected %d", ErrInvalidHash, len(b), sha1.Size)
	}
	return Hash(hex.EncodeToString(b)), nil
}
