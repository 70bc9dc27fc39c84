package text_translator

// State is a step of one orchestrated translation
type State int

const (
	StateIdle State = iota
	StateCacheLookup
	StateRateCheckPrimary
	StateStreamingPrimary
	StateRateCheckFallback
	StateStreamingFallback
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCacheLookup:
		return "cache_lookup"
	case StateRateCheckPrimary:
		return "rate_check_primary"
	case StateStreamingPrimary:
		return "streaming_primary"
	case StateRateCheckFallback:
		return "rate_check_fallback"
	case StateStreamingFallback:
		return "streaming_fallback"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
