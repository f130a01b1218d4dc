package interfaces

import "context"

// Advisor sends a prompt to a language model and returns its raw reply.
type Advisor interface {
	Ask(ctx context.Context, prompt string) (string, error)
}
