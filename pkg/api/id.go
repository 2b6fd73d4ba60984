package api

import (
	"crypto/rand"
	"math/big"
	"regexp"

	"github.com/google/uuid"
)

const (
	idLength = 24
	charset  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	runIDPrefix = "run_"
	docIDPrefix = "doc_"
)

var (
	runIDPattern = regexp.MustCompile(`^run_[a-zA-Z0-9]{24}$`)
	docIDPattern = regexp.MustCompile(`^doc_[a-zA-Z0-9]{24}$`)
)

// NewRunID generates a new pipeline run ID with the "run_" prefix followed
// by 24 cryptographically random alphanumeric characters.
func NewRunID() string {
	return runIDPrefix + randomAlphanumeric(idLength)
}

// NewDocumentID generates an ID for an ingested retrieval document.
func NewDocumentID() string {
	return docIDPrefix + randomAlphanumeric(idLength)
}

// NewConversationID generates a conversation ID. Conversations are client
// visible and long lived, so they use standard UUIDs.
func NewConversationID() string {
	return uuid.NewString()
}

// NewMessageID generates a message ID within a conversation.
func NewMessageID() string {
	return uuid.NewString()
}

// ValidateRunID checks whether the given string is a valid run ID.
func ValidateRunID(id string) bool {
	return runIDPattern.MatchString(id)
}

// ValidateDocumentID checks whether the given string is a valid document ID.
func ValidateDocumentID(id string) bool {
	return docIDPattern.MatchString(id)
}

func randomAlphanumeric(n int) string {
	max := big.NewInt(int64(len(charset)))
	b := make([]byte, n)
	for i := range b {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			panic("crypto/rand failed: " + err.Error())
		}
		b[i] = charset[idx.Int64()]
	}
	return string(b)
}
