package table

import "context"

// EventKind classifies what happened to a row inside a MutatedTable.
type EventKind int

const (
	// EventPulled fires for every row pulled from the source.
	EventPulled EventKind = iota
	// EventEmitted fires for every row MutateRow emitted.
	EventEmitted
	// EventSuppressed fires when MutateRow emitted nothing.
	EventSuppressed
	// EventFlushed fires when EndOfRows emitted a row.
	EventFlushed
	// EventShapeMismatch fires when an emitted row length differs from the header.
	EventShapeMismatch
)

func (k EventKind) String() string {
	switch k {
	case EventPulled:
		return "pulled"
	case EventEmitted:
		return "emitted"
	case EventSuppressed:
		return "suppressed"
	case EventFlushed:
		return "flushed"
	case EventShapeMismatch:
		return "shape_mismatch"
	default:
		return "unknown"
	}
}

// Event describes one row event of one stage.
type Event struct {
	Stage string
	Kind  EventKind
	// Line is the 1-based number of the source row being processed.
	Line int
}

// Observer receives row events. It is called synchronously from Next.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }
