package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// FailureKind classifies why a completion could not produce a usable value.
type FailureKind string

const (
	// KindNone is returned by KindOf for a nil error.
	KindNone FailureKind = ""
	// KindProvider covers transport or API errors from the provider.
	KindProvider FailureKind = "provider"
	// KindTimeout means the call exceeded its deadline.
	KindTimeout FailureKind = "timeout"
	// KindInvalidJSON means the model answered but not with the requested JSON.
	KindInvalidJSON FailureKind = "invalid_json"
	// KindUnavailable means no model is configured for this deployment.
	KindUnavailable FailureKind = "unavailable"
)

// Failure is the only error type returned by a Completer.
type Failure struct {
	Kind FailureKind
	Err  error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("llm %s: %v", f.Kind, f.Err)
	}
	return fmt.Sprintf("llm %s", f.Kind)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// KindOf returns the failure kind carried by err. Errors that are not a
// *Failure are reported as KindProvider.
func KindOf(err error) FailureKind {
	if err == nil {
		return KindNone
	}
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindProvider
}

// Completer produces a JSON object for a prompt.
type Completer interface {
	// CompleteJSON decodes the model's JSON answer into out. Any error is a *Failure.
	CompleteJSON(ctx context.Context, prompt, system string, out any) error
	// Model returns the model name used, or "" when unavailable.
	Model() string
}

// DefaultTimeout bounds a single completion including the re-ask.
const DefaultTimeout = 45 * time.Second

type clientCompleter struct {
	client  Client
	tier    ModelTier
	timeout time.Duration
}

// NewCompleter adapts a Client into a Completer using the given tier.
// A nil client yields Unavailable().
func NewCompleter(client Client, tier ModelTier, timeout time.Duration) Completer {
	if client == nil {
		return Unavailable()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &clientCompleter{client: client, tier: tier, timeout: timeout}
}

func (c *clientCompleter) Model() string {
	return c.client.Model(c.tier)
}

func (c *clientCompleter) CompleteJSON(ctx context.Context, prompt, system string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req := Request{Tier: c.tier, System: system, Prompt: prompt}
	text, err := c.generate(ctx, req)
	if err != nil {
		return err
	}
	decodeErr := json.Unmarshal([]byte(CleanJSONBlock(text)), out)
	if decodeErr == nil {
		return nil
	}

	// One re-ask with the parse error attached.
	req.Prompt = prompt + "\n\nYour previous answer was not valid JSON (" + decodeErr.Error() +
		"). Return ONLY the JSON object."
	text, err = c.generate(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(CleanJSONBlock(text)), out); err != nil {
		return &Failure{Kind: KindInvalidJSON, Err: err}
	}
	return nil
}

func (c *clientCompleter) generate(ctx context.Context, req Request) (string, error) {
	text, err := c.client.GenerateJSON(ctx, req)
	if err == nil {
		return text, nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return "", &Failure{Kind: KindTimeout, Err: err}
	}
	return "", &Failure{Kind: KindProvider, Err: err}
}

type unavailable struct{}

// Unavailable returns a Completer that always fails with KindUnavailable.
func Unavailable() Completer { return unavailable{} }

func (unavailable) CompleteJSON(context.Context, string, string, any) error {
	return &Failure{Kind: KindUnavailable, Err: errors.New("no LLM configured")}
}

func (unavailable) Model() string { return "" }
