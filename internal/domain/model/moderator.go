package model

import (
	"strconv"
	"strings"
	"time"
)

// Moderator is a roster entry. Deactivation removes the moderator from
// future fan-outs but keeps the row and its decision history.
type Moderator struct {
	ID              int64
	TelegramID      int64
	Username        string
	FirstName       string
	Active          bool
	AddedAt         time.Time
	ModerationCount int
}

func (m Moderator) DisplayName() string {
	if strings.TrimSpace(m.FirstName) != "" {
		return m.FirstName
	}
	if strings.TrimSpace(m.Username) != "" {
		return "@" + m.Username
	}
	return "Модератор #" + strconv.FormatInt(m.TelegramID, 10)
}
