// Package id generates identifiers for episodes, event-stream clients and devices.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ID prefixes.
const (
	PrefixEpisode   = "ep"
	PrefixSSEClient = "sse"
)

// Generate returns prefix-<nanoid>, e.g. "ep-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// NewDeviceID returns a random UUID used as the device-local user identifier.
// Remote backends key rows on it, so it uses the canonical UUID text form.
func NewDeviceID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate device id: %w", err)
	}
	return u.String(), nil
}
