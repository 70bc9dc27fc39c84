package sse

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"translate-bridge/pkg/types"
)

const (
	// DoneSignal is the last message of every job stream
	DoneSignal = "[DONE]"

	clientBuffer    = 200
	cleanupInterval = 5 * time.Minute
)

// Event types published for a translation job
const (
	EventProgress = "progress"
	EventComplete = "complete"
	EventError    = "error"
)

// Event is the JSON payload of one SSE data line
type Event struct {
	Type   string                   `json:"type"`
	Text   string                   `json:"text,omitempty"`
	Result *types.TranslationResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// Hub manages channels per job id
type Hub struct {
	mu    sync.RWMutex
	chans map[string]*Stream
}

// Stream holds channels and state for a translation job
type Stream struct {
	clients []*Client
	buffer  []string
	done    bool
	mu      sync.RWMutex
}

// Client holds a channel where messages for a job are pushed
type Client struct {
	Ch chan string
}

func NewHub() *Hub {
	return &Hub{chans: make(map[string]*Stream)}
}

// Run removes finished streams periodically until ctx is done
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			h.cleanup()
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) cleanup() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	removed := 0
	for id, stream := range h.chans {
		stream.mu.RLock()
		done := stream.done
		clientCount := len(stream.clients)
		stream.mu.RUnlock()

		if done && clientCount == 0 {
			delete(h.chans, id)
			removed++
		}
	}
	return removed
}

// Create registers a stream for id. It returns false if id is already taken.
func (h *Hub) Create(id string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.chans[id]; ok {
		return false
	}
	h.chans[id] = newStream()
	return true
}

func newStream() *Stream {
	return &Stream{
		clients: make([]*Client, 0),
		buffer:  make([]string, 0),
	}
}

// Exists reports whether a stream was created for id
func (h *Hub) Exists(id string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.chans[id]
	return ok
}

// AddClient subscribes to id and replays everything published so far
func (h *Hub) AddClient(id string) *Client {
	h.mu.Lock()
	stream, ok := h.chans[id]
	if !ok {
		stream = newStream()
		h.chans[id] = stream
	}
	h.mu.Unlock()

	stream.mu.Lock()
	defer stream.mu.Unlock()

	// sized so the replay never blocks
	client := &Client{Ch: make(chan string, clientBuffer+len(stream.buffer))}
	for _, msg := range stream.buffer {
		client.Ch <- msg
	}
	stream.clients = append(stream.clients, client)

	return client
}

func (h *Hub) RemoveClient(id string, client *Client) {
	h.mu.RLock()
	stream, ok := h.chans[id]
	h.mu.RUnlock()

	if !ok {
		return
	}

	stream.mu.Lock()
	for i, c := range stream.clients {
		if c == client {
			stream.clients = append(stream.clients[:i], stream.clients[i+1:]...)
			break
		}
	}
	stream.mu.Unlock()

	close(client.Ch)
}

// Publish encodes ev and sends it to the stream
func (h *Hub) Publish(id string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return h.Send(id, string(b))
}

// Finish sends the end signal; the stream becomes eligible for cleanup
func (h *Hub) Finish(id string) error {
	return h.Send(id, DoneSignal)
}

func (h *Hub) Send(id, msg string) error {
	h.mu.RLock()
	stream, ok := h.chans[id]
	h.mu.RUnlock()

	if !ok {
		return nil
	}

	stream.mu.Lock()
	defer stream.mu.Unlock()

	// buffer message FIRST
	stream.buffer = append(stream.buffer, msg)

	if msg == DoneSignal {
		stream.done = true
	}

	for _, client := range stream.clients {
		select {
		case client.Ch <- msg:
		default:
			// slow subscriber: drop its oldest pending message.
			// progress events carry the accumulated text so only staleness is lost.
			select {
			case <-client.Ch:
			default:
			}
			select {
			case client.Ch <- msg:
			default:
			}
		}
	}

	return nil
}
