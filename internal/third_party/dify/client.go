// Package dify adapts the Dify chat-messages API.
package dify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"translate-bridge/internal/prompt"
	"translate-bridge/internal/streamdecoder"
	"translate-bridge/internal/third_party/transport"
	"translate-bridge/pkg/types"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBaseURL = "https://api.dify.ai/v1"

const (
	eventMessage      = "message"
	eventAgentMessage = "agent_message"
	eventMessageEnd   = "message_end"
	eventError        = "error"
)

type Client struct {
	logger *zap.Logger
	http   *resty.Client
}

func NewClient(logger *zap.Logger, http *resty.Client) *Client {
	return &Client{
		logger: logger.Named("dify"),
		http:   http,
	}
}

func (c *Client) ID() types.ProviderID {
	return types.ProviderDify
}

type chatMessageRequest struct {
	Inputs       map[string]any `json:"inputs"`
	Query        string         `json:"query"`
	User         string         `json:"user"`
	ResponseMode string         `json:"response_mode"`
}

// StreamTranslation implements streaming translation over chat-messages
func (c *Client) StreamTranslation(ctx context.Context, req types.TranslationRequest, settings types.Settings, onEvent func(types.StreamEvent) error) (string, error) {
	ps := settings.Provider(c.ID())
	if ps.Credential == "" {
		return "", fmt.Errorf("%s: %w", c.ID(), types.ErrMissingCredential)
	}

	c.logger.Debug("streaming translation",
		zap.String("request_id", req.RequestID),
		zap.String("target_language", req.TargetLanguage),
	)

	return transport.Stream(ctx, c.logger, c.http, transport.Call{
		Provider:   c.ID(),
		URL:        baseURL(ps.Endpoint) + "/chat-messages",
		Credential: ps.Credential,
		Timeout:    settings.RequestTimeout,
		Body: chatMessageRequest{
			Inputs:       map[string]any{},
			Query:        prompt.BuildTranslation(req),
			User:         userID(req.RequestID),
			ResponseMode: "streaming",
		},
		Rule: Rule(),
	}, onEvent)
}

// Rule returns the stream framing of Dify chat events. Completion is signalled
// by the message_end event rather than a sentinel payload.
func Rule() streamdecoder.Rule {
	return streamdecoder.Rule{
		Prefix: streamdecoder.DefaultPrefix,
		Decode: decodeEvent,
	}
}

type streamEvent struct {
	Event   string `json:"event"`
	Answer  string `json:"answer"`
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeEvent(payload []byte) ([]types.StreamEvent, error) {
	var ev streamEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, err
	}
	switch ev.Event {
	case eventMessage, eventAgentMessage:
		return []types.StreamEvent{types.Delta(ev.Answer)}, nil
	case eventMessageEnd:
		return []types.StreamEvent{types.End()}, nil
	case eventError:
		body := ev.Message
		if ev.Code != "" {
			body = ev.Code + ": " + body
		}
		return []types.StreamEvent{types.Failure(&types.ProviderError{
			Provider:   types.ProviderDify,
			StatusCode: ev.Status,
			Body:       body,
		})}, nil
	case "":
		return nil, errors.New("payload has no event field")
	default:
		// ping, workflow and node lifecycle events carry no answer text
		return nil, nil
	}
}

type blockingResponse struct {
	Answer string `json:"answer"`
}

// Probe sends a blocking chat message and returns the answer
func (c *Client) Probe(ctx context.Context, ps types.ProviderSettings, timeout time.Duration) (string, error) {
	if ps.Credential == "" {
		return "", fmt.Errorf("%s: %w", c.ID(), types.ErrMissingCredential)
	}
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var out blockingResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+ps.Credential).
		SetBody(chatMessageRequest{
			Inputs:       map[string]any{},
			Query:        prompt.ProbeText,
			User:         userID("probe"),
			ResponseMode: "blocking",
		}).
		SetResult(&out).
		Post(baseURL(ps.Endpoint) + "/chat-messages")
	if err != nil {
		return "", transport.Classify(ctx, c.ID(), timeout, err)
	}
	if resp.IsError() {
		return "", &types.ProviderError{Provider: c.ID(), StatusCode: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}
	if out.Answer == "" {
		return "", &types.ProviderError{Provider: c.ID(), Body: "malformed response: no answer"}
	}

	c.logger.Info("probe succeeded")
	return out.Answer, nil
}

func userID(requestID string) string {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return "translate-bridge-" + requestID
}

func baseURL(endpoint string) string {
	if endpoint == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(endpoint, "/")
}
