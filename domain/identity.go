package domain

import (
	"strings"
	"time"
)

// Identity is the caller-chosen name of a participant.
// It is trusted as-is and doubles as the push channel name.
type Identity string

// Valid reports whether the identity is non-blank.
func (i Identity) Valid() bool {
	return strings.TrimSpace(string(i)) != ""
}

func (i Identity) String() string { return string(i) }

// ConnectionID identifies one live connection handle.
type ConnectionID string

// UserInfo is what the server tells about a registered identity.
type UserInfo struct {
	Identity    Identity  `json:"identity"`
	DisplayName string    `json:"displayName"`
	ConnectedAt time.Time `json:"connectedAt"`
	Online      bool      `json:"online"`
	Connections int       `json:"connections"`
}
