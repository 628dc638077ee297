// Package commands describes entries of the bot command table.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is one slash command. Usage is shown after the name in /help, e.g. "<seconds>".
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	Usage       string
	AdminOnly   bool
	Hidden      bool
	// Aliases are plain words that trigger the command from ordinary text.
	Aliases []string
}

// Visible reports whether the command belongs in the command menu and /help.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// HasAlias reports whether word is one of the aliases, ignoring case.
func (c Command) HasAlias(word string) bool {
	word = strings.TrimSpace(word)
	if word == "" {
		return false
	}
	for _, alias := range c.Aliases {
		if strings.EqualFold(alias, word) {
			return true
		}
	}
	return false
}
