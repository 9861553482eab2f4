// Package tools holds the capabilities the model may call by name during a
// conversation, and the registry that dispatches them.
package tools

import (
	"context"
	"fmt"
)

// ExecuteFunc runs a tool. Arguments are the primitive values decoded from
// the model's call; the returned text is handed back to the model.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Param describes one named argument. Type is a JSON schema type name and
// defaults to "string".
type Param struct {
	Name        string
	Type        string
	Description string
}

// Spec is the part of a tool the model sees.
type Spec struct {
	Name        string
	Description string
	Params      []Param
	Required    []string
}

// Tool is a named capability.
type Tool struct {
	Name        string
	Description string
	Params      []Param
	Required    []string
	Execute     ExecuteFunc
}

// Validate checks that the tool can be registered.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	return nil
}

// Spec returns the model-facing description of t.
func (t *Tool) Spec() Spec {
	return Spec{
		Name:        t.Name,
		Description: t.Description,
		Params:      append([]Param(nil), t.Params...),
		Required:    append([]string(nil), t.Required...),
	}
}

// Call checks required arguments and runs the tool. A panic inside Execute
// is returned as ErrToolPanicked.
func (t *Tool) Call(ctx context.Context, args map[string]any) (result string, err error) {
	for _, name := range t.Required {
		if _, ok := args[name]; !ok {
			return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
		}
	}

	defer func() {
		if r := recover(); r != nil {
			result = ""
			err = fmt.Errorf("%w: %s: %v", ErrToolPanicked, t.Name, r)
		}
	}()
	return t.Execute(ctx, args)
}

// StringArg fetches a string argument, rejecting other types.
func StringArg(args map[string]any, name string) (string, error) {
	v, ok := args[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingRequiredArg, name)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidArgType, name, v)
	}
	return s, nil
}
