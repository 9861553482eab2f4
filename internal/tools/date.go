package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tj/go-naturaldate"

	"github.com/taskmaster-ai/taskmaster/internal/tasks"
)

// DateToolName is the name the extraction prompt tells the model to call.
const DateToolName = "parse_natural_date"

// DateTool returns the parse_natural_date tool. now supplies the reference
// time for relative expressions; nil means time.Now.
//
// Absolute dates are tried first, then natural language ("next friday",
// "in 3 days") resolved towards the future. The result is YYYY-MM-DD.
func DateTool(now func() time.Time) *Tool {
	if now == nil {
		now = time.Now
	}
	return &Tool{
		Name:        DateToolName,
		Description: "Parse a natural language date such as \"next Friday\" or \"tomorrow\" and return it as YYYY-MM-DD.",
		Params: []Param{
			{Name: "date_text", Type: "string", Description: "The date expression to parse"},
		},
		Required: []string{"date_text"},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			text, err := StringArg(args, "date_text")
			if err != nil {
				return "", err
			}
			d, err := ParseNaturalDate(text, now())
			if err != nil {
				return "", err
			}
			return d.Format(tasks.DateLayout), nil
		},
	}
}

// ParseNaturalDate resolves text against ref.
func ParseNaturalDate(text string, ref time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("%w: empty input", ErrUnparseableDate)
	}
	if t, ok := tasks.ParseDate(text); ok {
		return t, nil
	}

	t, err := naturaldate.Parse(text, ref, naturaldate.WithDirection(naturaldate.Future))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrUnparseableDate, text, err)
	}
	return t, nil
}
