package services

import "github.com/mkuzmins/homeboard/internal/sync/event"

// ChangeEmitter receives row change notifications after a mutation commits.
// The hub implements it by pushing a row-watch event onto each named
// principal's channel.
type ChangeEmitter interface {
	RowChanged(table string, op event.Op, userIDs []string)
}

// NopEmitter discards change notifications. Used in tests and tools that run
// without a hub.
type NopEmitter struct{}

func (NopEmitter) RowChanged(string, event.Op, []string) {}
