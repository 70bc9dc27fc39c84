// Package transport carries provider requests over resty and pumps streamed
// response bodies through a stream decoder.
package transport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"translate-bridge/internal/streamdecoder"
	"translate-bridge/pkg/types"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	readBufferSize = 4096
	maxErrorBody   = 4096

	// DefaultTimeout bounds a call whose settings carry no timeout
	DefaultTimeout = 30 * time.Second
)

// NewRestyClient returns a client suited to long-lived streamed responses.
// No client-wide timeout is set; every call is bounded by its context.
func NewRestyClient() *resty.Client {
	return resty.New().
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0)
}

// Call describes a single streamed provider request
type Call struct {
	Provider   types.ProviderID
	URL        string
	Credential string
	Body       any
	Timeout    time.Duration
	Rule       streamdecoder.Rule
}

// Stream posts the call, feeds the body through a fresh decoder and forwards
// every delta to onEvent. It returns the accumulated text once the provider
// signals completion or closes the stream after sending text.
func Stream(ctx context.Context, logger *zap.Logger, client *resty.Client, call Call, onEvent func(types.StreamEvent) error) (string, error) {
	if call.Timeout <= 0 {
		call.Timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, call.Timeout)
	defer cancel()

	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+call.Credential).
		SetHeader("Accept", "text/event-stream").
		SetBody(call.Body).
		SetDoNotParseResponse(true).
		Post(call.URL)
	if err != nil {
		return "", classify(ctx, call, err)
	}

	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return "", StatusError(call.Provider, resp.StatusCode(), body)
	}

	dec := streamdecoder.New(call.Rule, logger.With(zap.String("provider", string(call.Provider))))
	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if done, err := dispatch(dec.Feed(buf[:n]), onEvent); err != nil || done {
				return dec.Text(), err
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", classify(ctx, call, readErr)
		}
	}

	if done, err := dispatch(dec.Finish(), onEvent); err != nil || done {
		return dec.Text(), err
	}

	if dec.Text() == "" {
		return "", &types.ProviderError{Provider: call.Provider, Err: errors.New("stream closed without any translated text")}
	}
	logger.Debug("stream closed without end marker",
		zap.String("provider", string(call.Provider)),
		zap.Int("text_length", len(dec.Text())),
	)
	return dec.Text(), nil
}

// dispatch forwards events and reports whether the stream has ended
func dispatch(events []types.StreamEvent, onEvent func(types.StreamEvent) error) (bool, error) {
	for _, ev := range events {
		switch ev.Kind {
		case types.EventError:
			return true, ev.Err
		case types.EventEnd:
			return true, nil
		case types.EventDelta:
			if err := onEvent(ev); err != nil {
				return true, err
			}
		}
	}
	return false, nil
}

// StatusError converts a non-2xx response into a ProviderError carrying the body text
func StatusError(provider types.ProviderID, status int, body io.Reader) error {
	text, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return &types.ProviderError{
		Provider:   provider,
		StatusCode: status,
		Body:       strings.TrimSpace(string(text)),
	}
}

func classify(ctx context.Context, call Call, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &types.TimeoutError{Provider: call.Provider, Timeout: call.Timeout}
	}
	return &types.ProviderError{Provider: call.Provider, Err: err}
}

// Classify maps an error from a bounded call to a TimeoutError or ProviderError
func Classify(ctx context.Context, provider types.ProviderID, timeout time.Duration, err error) error {
	return classify(ctx, Call{Provider: provider, Timeout: timeout}, err)
}
