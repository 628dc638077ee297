package format

import (
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

const (
	mdV1Specials = "_*`["
	mdV2Specials = "_*[]()~`>#+-=|{}.!\\"
)

// EscapeMarkdown escapes special characters for MarkdownV1 or V2.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return escapeSet(text, mdV1Specials), nil
	case MarkdownV2:
		return escapeSet(text, mdV2Specials), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// EscapeV2 is EscapeMarkdown for MarkdownV2, which cannot fail.
func EscapeV2(text string) string {
	return escapeSet(text, mdV2Specials)
}

func escapeSet(text, specials string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// MentionV2 renders an inline user mention for MarkdownV2 messages. The link text is the
// user's full name, falling back to the username and finally to the numeric id.
func MentionV2(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.Username
	}
	if name == "" {
		name = strconv.FormatInt(u.ID, 10)
	}
	return "[" + EscapeV2(name) + "](tg://user?id=" + strconv.FormatInt(u.ID, 10) + ")"
}
