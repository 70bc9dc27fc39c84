package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyText         = errors.New("text is empty")
	ErrMissingCredential = errors.New("provider credential is not configured")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrInvalidLanguage   = errors.New("invalid target language")

	ErrRateLimited = errors.New("rate limit exceeded")
	ErrTimeout     = errors.New("request timed out")
)

// RateLimitError is returned when a provider's quota is exhausted
type RateLimitError struct {
	Provider ProviderID
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: rate limit exceeded, try again later", e.Provider)
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// TimeoutError is returned when a provider attempt exceeds its deadline
type TimeoutError struct {
	Provider ProviderID
	Timeout  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: request timed out after %s", e.Provider, e.Timeout)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ProviderError covers non-success statuses, malformed top-level responses,
// failures reported inside a stream and transport errors
type ProviderError struct {
	Provider   ProviderID
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Provider))
	b.WriteString(": ")
	switch {
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "request failed with status %d", e.StatusCode)
		if e.Body != "" {
			b.WriteString(": ")
			b.WriteString(e.Body)
		}
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString("provider error")
		if e.Body != "" {
			b.WriteString(": ")
			b.WriteString(e.Body)
		}
	}
	return b.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// AttemptFailure records why one provider attempt failed
type AttemptFailure struct {
	Provider ProviderID
	Role     AttemptRole
	Err      error
}

// AllProvidersFailedError is the terminal error once both providers have failed
type AllProvidersFailedError struct {
	Primary  AttemptFailure
	Fallback AttemptFailure
}

func (e *AllProvidersFailedError) Error() string {
	return fmt.Sprintf("all translation providers failed: primary %s: %v; fallback %s: %v",
		e.Primary.Provider, e.Primary.Err, e.Fallback.Provider, e.Fallback.Err)
}

func (e *AllProvidersFailedError) Unwrap() []error {
	return []error{e.Primary.Err, e.Fallback.Err}
}
