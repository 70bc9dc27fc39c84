package types

// EventKind classifies a normalized stream event
type EventKind int

const (
	// EventDelta carries an incremental piece of translated text
	EventDelta EventKind = iota
	// EventEnd marks logical completion of the stream
	EventEnd
	// EventError carries a failure reported inside the stream itself
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventDelta:
		return "delta"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// StreamEvent is the provider-independent shape every adapter emits
type StreamEvent struct {
	Kind EventKind
	Text string
	Err  error
}

// Delta builds a delta event
func Delta(text string) StreamEvent {
	return StreamEvent{Kind: EventDelta, Text: text}
}

// End builds an end event
func End() StreamEvent {
	return StreamEvent{Kind: EventEnd}
}

// Failure builds an error event
func Failure(err error) StreamEvent {
	return StreamEvent{Kind: EventError, Err: err}
}

// ProgressFunc receives the accumulated translation and whether it is final
type ProgressFunc func(accumulated string, complete bool)
