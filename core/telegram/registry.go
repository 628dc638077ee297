package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/remindbot/core/logger"
	"github.com/m3rciful/remindbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Registry holds bot commands, callback handlers and the fallbacks for both.
// The zero value has no fallbacks; use NewRegistry.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]commands.Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty Registry whose unknown-callback fallback answers with a
// short toast.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]commands.Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

func wireWarn(event string, attrs ...slog.Attr) {
	logger.LogEvent(context.Background(), logger.TWire, slog.LevelWarn, event, attrs...)
}

// RegisterCommand adds cmd under name ("/price"). Invalid or duplicate registrations are
// logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "invalid"))
		return
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		wireWarn("register.command.skip", slog.String("name", name), slog.String("reason", "no_slash_prefix"))
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		wireWarn("register.command.duplicate", slog.String("name", name))
		return
	}
	if r.commands == nil {
		r.commands = make(map[string]commands.Command)
	}
	r.commands[name] = cmd
}

// Commands returns a copy of the registered commands keyed by name.
func (r *Registry) Commands() map[string]commands.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]commands.Command, len(r.commands))
	for name, cmd := range r.commands {
		out[name] = cmd
	}
	return out
}

// ListCommands returns the commands sorted by name. With visibleOnly set, hidden and
// admin-only commands are left out.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for name, cmd := range r.Commands() {
		if !visibleOnly || cmd.Visible() {
			list = append(list, tele.Command{Text: name, Description: cmd.Description})
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand resolves "/help" by name and "help" by alias. It returns the
// registered name with the command.
func (r *Registry) LookupCommand(text string) (string, commands.Command, bool) {
	word := strings.TrimSpace(text)
	if word == "" {
		return "", commands.Command{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[word]; ok {
		return word, cmd, true
	}
	for name, cmd := range r.commands {
		if cmd.HasAlias(word) {
			return name, cmd, true
		}
	}
	return "", commands.Command{}, false
}

// HelpText renders the visible commands as "/name usage - description" lines.
func (r *Registry) HelpText() string {
	cmds := r.Commands()
	lines := make([]string, 0, len(cmds))
	for _, c := range r.ListCommands(true) {
		name := c.Text
		if usage := cmds[c.Text].Usage; usage != "" {
			name += " " + usage
		}
		lines = append(lines, name+" - "+c.Description)
	}
	return strings.Join(lines, "\n")
}

// RegisterCallback binds handler to the callback unique key.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		wireWarn("register.callback.skip", slog.String("key", key), slog.Bool("handler_nil", handler == nil))
		return fmt.Errorf("invalid callback registration %q", key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[key]; dup {
		wireWarn("register.callback.duplicate", slog.String("key", key))
		return fmt.Errorf("callback already registered: %s", key)
	}
	if r.callbacks == nil {
		r.callbacks = make(map[string]tele.HandlerFunc)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler bound to key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the sorted callback keys.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetCallbackNotFound replaces the unknown-callback fallback. A nil h is ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.callbackNotFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the unknown-callback fallback.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for plain text that matches no alias.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	r.textFallback = h
	r.mu.Unlock()
}

// TextFallback returns the plain text fallback.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// InitBotCommands publishes the visible commands as the client command menu. Telegram
// wants the names without the slash.
func InitBotCommands(bot *tele.Bot, reg *Registry) {
	list := reg.ListCommands(true)
	for i := range list {
		list[i].Text = strings.TrimPrefix(list[i].Text, "/")
	}
	if err := bot.SetCommands(list); err != nil {
		logger.LogEvent(context.Background(), logger.TWire, slog.LevelError, "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
