// Package state keeps one session record per chat: the conversation step, the date
// collected so far and the reminders still pending. Each record has its own lock, so
// updates for different chats never contend and updates for one chat are serialized.
package state
