// Package store persists conversation history and accumulated usage between
// turns, keyed by session id.
package store

import "codexchat/core"

type Store interface {
	Messages(sessionID string) []core.Message
	Usage(sessionID string) core.Usage
	Extend(sessionID string, msgs []core.Message, usage core.Usage) error
}
