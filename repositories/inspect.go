package repositories

import (
	"chat-relay/codec"
	"fmt"
	"strings"

	"github.com/mama165/sdk-go/database"
)

// InspectMapper renders relay records in the Badger debug inspector.
func InspectMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)
	switch {
	case strings.HasPrefix(key, messagePrefix):
		var m diskMessage
		if err := codec.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "MESSAGE"
		row.Detail = fmt.Sprintf("%s -> %s at %s: %s", m.From, m.To, m.At.UTC().Format("15:04:05.000"), m.Text)
	case strings.HasPrefix(key, userPrefix):
		var u diskUser
		if err := codec.Unmarshal(val, &u); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.Type = "USER"
		row.Detail = fmt.Sprintf("%s (%s) online=%t", u.Username, u.Name, u.Online)
	case strings.HasPrefix(key, pairPrefix):
		row.Type = "PAIR"
		row.Detail = string(val)
	case strings.HasPrefix(key, usernamePrefix):
		row.Type = "USERNAME"
		row.Detail = string(val)
	}
	return row
}
