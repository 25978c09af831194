package utils

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"strings"
)

func GenerateCode(n int) (string, error) {
	// Make a slice of nBytes random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	// Return the hexadecimal string.
	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// HashTicketCode derives the admission code of a ticket from its owner
// identity. Equal owners yield equal codes.
func HashTicketCode(ownerName, ownerEmail, ownerPhone string) string {
	sum := sha512.Sum512([]byte(ownerName + ownerEmail + ownerPhone))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
