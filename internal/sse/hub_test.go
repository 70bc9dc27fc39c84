package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"translate-bridge/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain(c *Client) []string {
	var out []string
	for {
		select {
		case msg := <-c.Ch:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_ReplayAndLive(t *testing.T) {
	h := NewHub()
	h.Create("job")
	require.True(t, h.Exists("job"))

	require.NoError(t, h.Publish("job", Event{Type: EventProgress, Text: "你"}))

	c := h.AddClient("job")
	require.NoError(t, h.Publish("job", Event{Type: EventComplete, Result: &types.TranslationResult{TranslatedText: "你好"}}))
	require.NoError(t, h.Finish("job"))

	msgs := drain(c)
	require.Len(t, msgs, 3)
	assert.JSONEq(t, `{"type":"progress","text":"你"}`, msgs[0])
	assert.Equal(t, DoneSignal, msgs[2])

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(msgs[1]), &ev))
	assert.Equal(t, EventComplete, ev.Type)
	assert.Equal(t, "你好", ev.Result.TranslatedText)
}

func TestHub_CreateRejectsTakenID(t *testing.T) {
	h := NewHub()
	assert.True(t, h.Create("job"))
	require.NoError(t, h.Finish("job"))
	assert.False(t, h.Create("job"))

	c := h.AddClient("job")
	assert.Equal(t, []string{DoneSignal}, drain(c))
}

func TestHub_SendToUnknownIsNoop(t *testing.T) {
	h := NewHub()
	assert.NoError(t, h.Send("missing", "x"))
	assert.False(t, h.Exists("missing"))
}

func TestHub_LateSubscriberGetsLongBacklog(t *testing.T) {
	h := NewHub()
	h.Create("job")
	for i := 0; i < clientBuffer*2; i++ {
		require.NoError(t, h.Send("job", fmt.Sprint(i)))
	}
	require.NoError(t, h.Finish("job"))

	c := h.AddClient("job")
	msgs := drain(c)
	require.Len(t, msgs, clientBuffer*2+1)
	assert.Equal(t, DoneSignal, msgs[len(msgs)-1])
}

func TestHub_SlowClientKeepsNewestMessages(t *testing.T) {
	h := NewHub()
	h.Create("job")
	c := h.AddClient("job")

	for i := 0; i < clientBuffer+10; i++ {
		require.NoError(t, h.Send("job", fmt.Sprint(i)))
	}
	require.NoError(t, h.Finish("job"))

	msgs := drain(c)
	require.Len(t, msgs, clientBuffer)
	assert.Equal(t, DoneSignal, msgs[len(msgs)-1])
	assert.Equal(t, fmt.Sprint(clientBuffer+9), msgs[len(msgs)-2])
}

func TestHub_Cleanup(t *testing.T) {
	h := NewHub()
	h.Create("finished")
	h.Create("running")
	c := h.AddClient("attached")

	require.NoError(t, h.Finish("finished"))
	require.NoError(t, h.Finish("attached"))

	assert.Equal(t, 1, h.cleanup())
	assert.False(t, h.Exists("finished"))
	assert.True(t, h.Exists("running"))
	assert.True(t, h.Exists("attached"))

	h.RemoveClient("attached", c)
	assert.Equal(t, 1, h.cleanup())
	assert.False(t, h.Exists("attached"))
}

func TestHub_RunStopsWithContext(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
