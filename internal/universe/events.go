package universe

import "github.com/google/uuid"

// EventKind distinguishes the outward-facing event kinds.
type EventKind int

const (
	// EventChannelDataUpdated signals that the channel buffer was
	// overwritten by the identified source.
	EventChannelDataUpdated EventKind = iota + 1
	// EventSourceAdded signals that a new source was admitted.
	EventSourceAdded
	// EventSourceRemoved signals that a source was evicted, either by a
	// terminated stream or by data-loss timeout.
	EventSourceRemoved
	// EventSourceLimitReached signals that a new source was turned away
	// because the registry is at its admission ceiling.
	EventSourceLimitReached
)

// String returns the stable name used in logs and the history store.
func (k EventKind) String() string {
	switch k {
	case EventChannelDataUpdated:
		return "channel_data_updated"
	case EventSourceAdded:
		return "source_added"
	case EventSourceRemoved:
		return "source_removed"
	case EventSourceLimitReached:
		return "source_limit_reached"
	default:
		return "unknown"
	}
}

// Event describes one thing that happened during a reactive cycle.
// Events are ephemeral values: the engine accumulates them in trigger
// order and the caller drains the batch once per cycle.
//
// Priority is the source's announced priority at the instant of the
// event: the registered priority for adds, removals, and data updates,
// and the refused packet's priority for limit-reached events (the
// source never got a registry record to read it from).
type Event struct {
	Kind     EventKind
	Source   uuid.UUID
	Priority uint8
}
