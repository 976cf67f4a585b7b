package repositories

import (
	"duochat/domain"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders store entries for the badger debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	row.Type, row.Detail = Describe(key, val)
	return row
}

// Describe returns a kind and a human readable summary of a raw store entry.
func Describe(key string, val []byte) (string, string) {
	kind, rest, _ := strings.Cut(key, ":")
	switch kind {
	case "conv":
		c, err := unmarshalConversation(val)
		if err != nil {
			return "CONVERSATION", "Error: unmarshal failed"
		}
		return "CONVERSATION", fmt.Sprintf("%s (%d messages)", c.key(), c.Count)
	case "msg":
		m, err := unmarshalMessage(val)
		if err != nil {
			return "MESSAGE", "Error: unmarshal failed"
		}
		return "MESSAGE", fmt.Sprintf("#%d %s -> %s: %s", m.Seq, m.From, m.To, m.Text)
	case "member":
		identity, p, ok := strings.Cut(rest, ":")
		raw, err := hex.DecodeString(identity)
		if !ok || err != nil {
			return "MEMBER", "Error: malformed key"
		}
		key, err := parsePair(p)
		if err != nil {
			return "MEMBER", "Error: malformed key"
		}
		return "MEMBER", fmt.Sprintf("%s in %s", domain.Identity(raw), key)
	default:
		return "UNKNOWN", fmt.Sprintf("%d bytes", len(val))
	}
}
