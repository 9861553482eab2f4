package tasks

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPriority is assigned when rules exist but none matches.
const DefaultPriority = "Normal"

// Rule assigns Priority to tasks whose description contains any keyword.
type Rule struct {
	Priority string   `yaml:"priority"`
	Keywords []string `yaml:"keywords"`
}

// Rules is the keyword based priority configuration, usually config.yaml:
//
//	priority_rules:
//	  - priority: High
//	    keywords: [urgent, asap, deadline]
type Rules struct {
	DefaultPriority string `yaml:"default_priority"`
	PriorityRules   []Rule `yaml:"priority_rules"`
}

// LoadRules reads rules from path. A missing file yields empty rules together
// with ErrRulesNotFound so the caller can decide whether to warn.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Rules{}, fmt.Errorf("%w: %s", ErrRulesNotFound, path)
		}
		return &Rules{}, fmt.Errorf("read rules %s: %w", path, err)
	}
	return ParseRules(data)
}

// ParseRules decodes YAML rules.
func ParseRules(data []byte) (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(data, &r); err != nil {
		return &Rules{}, fmt.Errorf("parse rules: %w", err)
	}
	for i := range r.PriorityRules {
		for j, kw := range r.PriorityRules[i].Keywords {
			r.PriorityRules[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	return &r, nil
}

// Apply returns a copy of tl with Priority filled in. The first matching rule
// wins. Without any rules the list is returned unchanged.
func (r *Rules) Apply(tl TaskList) TaskList {
	if r == nil || len(r.PriorityRules) == 0 {
		return tl
	}
	def := r.DefaultPriority
	if def == "" {
		def = DefaultPriority
	}

	out := make(TaskList, len(tl))
	for i, t := range tl {
		t.Priority = def
		desc := strings.ToLower(t.Description)
	rules:
		for _, rule := range r.PriorityRules {
			for _, kw := range rule.Keywords {
				if kw != "" && strings.Contains(desc, kw) {
					t.Priority = rule.Priority
					break rules
				}
			}
		}
		out[i] = t
	}
	return out
}
