package studytutor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Capability is an external reasoning endpoint: ask it a question, get back
// text. Every invocation may return a structurally different result, so
// callers validate outputs rather than trusting re-invocations to repeat.
type Capability interface {
	Name() string
	Invoke(ctx context.Context, query string) (string, error)
}

// Registry maps capability names to implementations. The coordinator and
// quiz maker depend only on the Capability interface, never on a concrete
// backend.
type Registry struct {
	capabilities map[string]Capability
}

// NewRegistry creates a registry holding the given capabilities.
func NewRegistry(capabilities ...Capability) *Registry {
	r := &Registry{capabilities: make(map[string]Capability)}
	for _, c := range capabilities {
		r.Register(c)
	}
	return r
}

// Register adds or replaces a capability by name.
func (r *Registry) Register(c Capability) {
	r.capabilities[c.Name()] = c
}

// Get looks up a capability by name.
func (r *Registry) Get(name string) (Capability, bool) {
	c, ok := r.capabilities[name]
	return c, ok
}

// Names returns the registered capability names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.capabilities))
	for name := range r.capabilities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Match selects the capabilities whose domain keywords appear in the query.
// When nothing matches, every registered capability is returned so a
// cross-domain question still gets answered.
func (r *Registry) Match(query string) []Capability {
	lower := strings.ToLower(query)
	var matched []Capability
	for _, name := range r.Names() {
		c := r.capabilities[name]
		keyworded, ok := c.(interface{ Keywords() []string })
		if !ok {
			continue
		}
		for _, kw := range keyworded.Keywords() {
			if strings.Contains(lower, kw) {
				matched = append(matched, c)
				break
			}
		}
	}
	if len(matched) == 0 {
		for _, name := range r.Names() {
			matched = append(matched, r.capabilities[name])
		}
	}
	return matched
}

// ExpertCapability answers questions as a single-domain expert using chat
// completions, with bounded exponential backoff on transient failures.
type ExpertCapability struct {
	name        string
	instruction string
	keywords    []string
	client      *openai.Client
	model       string
	retry       RetryPolicy
}

// NewExpertCapability creates an expert backed by an OpenAI-compatible
// client.
func NewExpertCapability(client *openai.Client, model, name, instruction string, keywords []string, retry RetryPolicy) *ExpertCapability {
	return &ExpertCapability{
		name:        name,
		instruction: instruction,
		keywords:    keywords,
		client:      client,
		model:       model,
		retry:       retry,
	}
}

// Name returns the capability name used for registry lookup.
func (e *ExpertCapability) Name() string {
	return e.name
}

// Keywords returns the domain terms used for fan-out selection.
func (e *ExpertCapability) Keywords() []string {
	return e.keywords
}

// Invoke sends the query to the model and returns the completion text.
func (e *ExpertCapability) Invoke(ctx context.Context, query string) (string, error) {
	var out string
	err := e.retry.Do(ctx, func() error {
		resp, err := e.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: e.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: e.instruction,
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: query,
					},
				},
			},
		)
		if err != nil {
			return classifyCapabilityError(e.name, err)
		}
		if len(resp.Choices) == 0 {
			return &CapabilityError{
				Capability: e.name,
				Retryable:  true,
				Err:        errors.New("empty completion"),
			}
		}
		out = resp.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// Statuses the upstream provider documents as transient.
var retryableStatus = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func classifyCapabilityError(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &CapabilityError{
			Capability: name,
			StatusCode: apiErr.HTTPStatusCode,
			Retryable:  retryableStatus[apiErr.HTTPStatusCode],
			Err:        err,
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &CapabilityError{Capability: name, Retryable: true, Err: err}
	}
	// Transport-level failures with no status are treated as transient.
	return &CapabilityError{Capability: name, Retryable: true, Err: fmt.Errorf("request failed: %w", err)}
}
