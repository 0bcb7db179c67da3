package session

import (
	"strconv"
	"strings"
)

// Origin is the kind of chat a message came from.
type Origin string

const (
	OriginPrivate Origin = "private"
	OriginGroup   Origin = "group"
)

// OriginOf maps a Telegram chat type to an origin. Everything that is not a
// private chat (group, supergroup, channel) counts as a group.
func OriginOf(chatType string) Origin {
	if chatType == "private" {
		return OriginPrivate
	}
	return OriginGroup
}

// Key returns the remote session key for a user in a chat, e.g. "group:7:-100123".
// The separator never appears in the decimal fields, so distinct triples never collide.
func Key(userID int64, origin Origin, chatID int64) string {
	var b strings.Builder
	b.WriteString(string(origin))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(userID, 10))
	b.WriteByte(':')
	b.WriteString(strconv.FormatInt(chatID, 10))
	return b.String()
}
