// Package siliconflow adapts the OpenAI-compatible SiliconFlow chat completions API.
package siliconflow

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
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://api.siliconflow.cn/v1"
	DefaultModel   = "Qwen/Qwen2.5-7B-Instruct"

	// doneSentinel is the payload that closes an OpenAI-style stream
	doneSentinel = "[DONE]"
)

type Client struct {
	logger *zap.Logger
	http   *resty.Client
}

func NewClient(logger *zap.Logger, http *resty.Client) *Client {
	return &Client{
		logger: logger.Named("siliconflow"),
		http:   http,
	}
}

func (c *Client) ID() types.ProviderID {
	return types.ProviderSiliconFlow
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stream      bool          `json:"stream"`
}

// StreamTranslation implements streaming translation over chat completions
func (c *Client) StreamTranslation(ctx context.Context, req types.TranslationRequest, settings types.Settings, onEvent func(types.StreamEvent) error) (string, error) {
	ps := settings.Provider(c.ID())
	if ps.Credential == "" {
		return "", fmt.Errorf("%s: %w", c.ID(), types.ErrMissingCredential)
	}

	model := modelOrDefault(ps.Model)
	c.logger.Debug("streaming translation",
		zap.String("request_id", req.RequestID),
		zap.String("model", model),
		zap.String("target_language", req.TargetLanguage),
	)

	return transport.Stream(ctx, c.logger, c.http, transport.Call{
		Provider:   c.ID(),
		URL:        baseURL(ps.Endpoint) + "/chat/completions",
		Credential: ps.Credential,
		Timeout:    settings.RequestTimeout,
		Body: chatRequest{
			Model:       model,
			Messages:    []chatMessage{{Role: "user", Content: prompt.BuildTranslation(req)}},
			Temperature: 0.3,
			MaxTokens:   2000,
			Stream:      true,
		},
		Rule: Rule(),
	}, onEvent)
}

// Rule returns the stream framing of chat completion chunks
func Rule() streamdecoder.Rule {
	return streamdecoder.Rule{
		Prefix:   streamdecoder.DefaultPrefix,
		Sentinel: doneSentinel,
		Decode:   decodeChunk,
	}
}

type streamError struct {
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
}

func decodeChunk(payload []byte) ([]types.StreamEvent, error) {
	var se streamError
	if err := json.Unmarshal(payload, &se); err != nil {
		return nil, err
	}
	if se.Error != nil {
		return []types.StreamEvent{types.Failure(&types.ProviderError{
			Provider: types.ProviderSiliconFlow,
			Body:     se.Error.Message,
		})}, nil
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return nil, err
	}
	var events []types.StreamEvent
	for _, choice := range chunk.Choices {
		if choice.Delta.Content != "" {
			events = append(events, types.Delta(choice.Delta.Content))
		}
	}
	return events, nil
}

// Probe sends a tiny non-streaming completion through the OpenAI SDK
func (c *Client) Probe(ctx context.Context, ps types.ProviderSettings, timeout time.Duration) (string, error) {
	if ps.Credential == "" {
		return "", fmt.Errorf("%s: %w", c.ID(), types.ErrMissingCredential)
	}
	if timeout <= 0 {
		timeout = transport.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client := openai.NewClient(
		option.WithAPIKey(ps.Credential),
		option.WithBaseURL(baseURL(ps.Endpoint)),
		option.WithHTTPClient(c.http.GetClient()),
		option.WithMaxRetries(0),
	)

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(modelOrDefault(ps.Model)),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt.ProbeText),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(100),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &types.ProviderError{Provider: c.ID(), StatusCode: apiErr.StatusCode, Body: apiErr.Message}
		}
		return "", transport.Classify(ctx, c.ID(), timeout, err)
	}
	if len(resp.Choices) == 0 {
		return "", &types.ProviderError{Provider: c.ID(), Body: "malformed response: no choices"}
	}

	c.logger.Info("probe succeeded", zap.String("model", modelOrDefault(ps.Model)))
	return resp.Choices[0].Message.Content, nil
}

func baseURL(endpoint string) string {
	if endpoint == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(endpoint, "/")
}

func modelOrDefault(model string) string {
	if model == "" {
		return DefaultModel
	}
	return model
}
