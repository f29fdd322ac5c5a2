// Package command defines user-invocable commands and the alias-indexed
// registry that resolves inbound tokens to them.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/hermodbot/hermod/pkg/domain"
)

// Handler executes a resolved command with its positional params.
type Handler func(ctx context.Context, c *domain.Context, params []string) error

// Validator checks the positional params before Handle runs. A validation
// failure is recovered the same way as a handler failure: help text to the
// channel, never an error to the caller.
type Validator func(params []string) error

// Command is a named, alias-indexed user-invocable action.
// Name and aliases carry no slash and no whitespace.
type Command struct {
	Name        string
	Aliases     []string
	Description string
	Help        string
	Validate    Validator
	Handle      Handler
}

func validToken(token string) error {
	if token == "" {
		return fmt.Errorf("command token is empty")
	}
	if strings.Contains(token, "/") {
		return fmt.Errorf("command token %q must not carry a slash", token)
	}
	if strings.ContainsAny(token, " \t\n") {
		return fmt.Errorf("command token %q must not contain whitespace", token)
	}
	return nil
}

// validate checks the command's identity invariants.
func (c *Command) validate() error {
	if c == nil {
		return fmt.Errorf("command is nil")
	}
	if err := validToken(c.Name); err != nil {
		return err
	}
	for _, alias := range c.Aliases {
		if err := validToken(alias); err != nil {
			return fmt.Errorf("alias of %q: %w", c.Name, err)
		}
	}
	if c.Handle == nil {
		return fmt.Errorf("command %q has no handler", c.Name)
	}
	return nil
}
