// Package streamdecoder turns a chunked, line-framed provider response into
// normalized stream events.
//
// Chunks may split lines, JSON payloads or multi-byte characters at any byte;
// only complete lines are decoded, so the result does not depend on how the
// response was segmented on the wire. A payload that fails to decode is logged
// and skipped.
package streamdecoder

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"translate-bridge/pkg/types"

	"go.uber.org/zap"
)

// DefaultPrefix is the server-sent-events data marker both providers use
const DefaultPrefix = "data:"

// PayloadDecoder converts one line payload into zero or more events.
// A returned error is treated as a decode warning, not a stream failure.
type PayloadDecoder func(payload []byte) ([]types.StreamEvent, error)

// Rule describes a provider's framing
type Rule struct {
	// Prefix marks lines carrying a payload; other lines are ignored
	Prefix string
	// Sentinel, when set, is a payload value that ends the stream
	Sentinel string
	Decode   PayloadDecoder
}

// Decoder holds the state of one streaming call and must not be shared
type Decoder struct {
	rule     Rule
	logger   *zap.Logger
	buf      []byte
	text     strings.Builder
	ended    bool
	warnings int
}

// New creates a Decoder for a single stream
func New(rule Rule, logger *zap.Logger) *Decoder {
	if rule.Prefix == "" {
		rule.Prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decoder{rule: rule, logger: logger}
}

// Feed appends chunk to the buffer and decodes every complete line
func (d *Decoder) Feed(chunk []byte) []types.StreamEvent {
	d.buf = append(d.buf, chunk...)

	var events []types.StreamEvent
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		events = d.line(d.buf[start:start+i], events)
		start += i + 1
	}
	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}
	return events
}

// Finish decodes whatever remains buffered as a final line
func (d *Decoder) Finish() []types.StreamEvent {
	if len(d.buf) == 0 {
		return nil
	}
	events := d.line(d.buf, nil)
	d.buf = nil
	return events
}

// Text returns the delta text accumulated so far
func (d *Decoder) Text() string {
	return d.text.String()
}

// Ended reports whether the logical end of the stream was seen
func (d *Decoder) Ended() bool {
	return d.ended
}

// Warnings returns the number of payloads that failed to decode
func (d *Decoder) Warnings() int {
	return d.warnings
}

func (d *Decoder) line(raw []byte, events []types.StreamEvent) []types.StreamEvent {
	if d.ended {
		return events
	}
	raw = bytes.TrimRight(raw, "\r")
	if len(bytes.TrimSpace(raw)) == 0 || !bytes.HasPrefix(raw, []byte(d.rule.Prefix)) {
		return events
	}
	payload := bytes.TrimSpace(raw[len(d.rule.Prefix):])
	if len(payload) == 0 {
		return events
	}

	if d.rule.Sentinel != "" && string(payload) == d.rule.Sentinel {
		d.ended = true
		return append(events, types.End())
	}

	decoded, err := d.rule.Decode(payload)
	if err != nil {
		d.warnings++
		d.logger.Warn("skipping malformed stream payload",
			zap.Error(err),
			zap.String("payload", truncate(string(payload), 200)),
		)
		return events
	}

	for _, ev := range decoded {
		switch ev.Kind {
		case types.EventDelta:
			if ev.Text == "" {
				continue
			}
			d.text.WriteString(ev.Text)
		case types.EventEnd:
			d.ended = true
			return append(events, ev)
		}
		events = append(events, ev)
	}
	return events
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
