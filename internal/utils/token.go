package utils

import "github.com/google/uuid"

// GenerateAPIToken returns a new random API token.
func GenerateAPIToken() string {
	return uuid.NewString()
}
