package model

import (
	"strconv"
	"strings"
	"time"
)

type User struct {
	TelegramID   int64
	Username     string
	FirstName    string
	LastName     string
	Subscribed   bool
	RegisteredAt time.Time
	LastActive   *time.Time
}

// DisplayName falls back from first name to @username to a numeric
// placeholder.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FirstName) != "" {
		return u.FirstName
	}
	if strings.TrimSpace(u.Username) != "" {
		return "@" + u.Username
	}
	return "Пользователь #" + strconv.FormatInt(u.TelegramID, 10)
}
