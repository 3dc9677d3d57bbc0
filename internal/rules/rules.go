// Package rules implements the ordered routing rule set. Rules bind field
// matchers (channel, sender, text pattern, mention requirement) to handler
// references; the first rule whose matchers all pass governs an event.
//
// The tie-break between overlapping rules is declaration order: earlier rules
// win. This mirrors how operators reason about their rule file top to bottom
// and is a deliberate, tested contract, not an accident of iteration.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	gwerrors "github.com/droidagent/slack-gateway-go/internal/errors"
	"github.com/droidagent/slack-gateway-go/internal/event"
	"github.com/droidagent/slack-gateway-go/internal/handler"
	"github.com/droidagent/slack-gateway-go/internal/pattern"
)

// Definition is one rule as written in the configuration file.
type Definition struct {
	Name           string `yaml:"name"`
	Channel        string `yaml:"channel"`         // wildcard over channel name (falls back to ID)
	User           string `yaml:"user"`            // wildcard over sender name (falls back to ID)
	Match          string `yaml:"match"`           // wildcard over message text
	RequireMention bool   `yaml:"require_mention"` // rule only fires when the bot is mentioned
	Enabled        *bool  `yaml:"enabled"`         // nil defaults to true
	Handler        string `yaml:"handler"`         // "script:name" or "prompt:name"
}

// ruleFile is the top-level YAML document shape.
type ruleFile struct {
	Rules []Definition `yaml:"rules"`
}

// ParseFile reads rule definitions from a YAML file.
func ParseFile(path string) ([]Definition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	var doc ruleFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return doc.Rules, nil
}

// Rule is one compiled routing entry. Immutable after load.
type Rule struct {
	Name           string
	Channel        pattern.Pattern
	Sender         pattern.Pattern
	Text           pattern.Pattern
	RequireMention bool
	Enabled        bool
	HandlerRef     string
	Handler        handler.Handler
}

// matches reports whether every present matcher passes for the event.
func (r *Rule) matches(evt *event.Event) bool {
	if !r.Enabled {
		return false
	}
	// Text-pattern rules only apply to kinds that carry user text.
	if r.Text.Form() != pattern.FormAny && !evt.Kind.IsMessageBearing() {
		return false
	}
	if r.RequireMention && !evt.MentionsBot {
		return false
	}
	if !r.Channel.Match(fallback(evt.ChannelName, evt.ChannelID)) {
		return false
	}
	if !r.Sender.Match(fallback(evt.SenderName, evt.SenderID)) {
		return false
	}
	return r.Text.Match(evt.Text)
}

func fallback(primary, secondary string) string {
	if primary != "" {
		return primary
	}
	return secondary
}

// RuleSet is an immutable, ordered collection of rules. Safe for
// unsynchronized concurrent reads; replaced wholesale on reload.
type RuleSet struct {
	rules []*Rule
}

// Load compiles definitions into a RuleSet, resolving every handler
// reference against the registry. It collects every offending rule before
// failing, so a broken file reports all its problems at once.
func Load(defs []Definition, registry *handler.Registry) (*RuleSet, error) {
	set := &RuleSet{rules: make([]*Rule, 0, len(defs))}
	var problems []error

	for i, def := range defs {
		name := def.Name
		if name == "" {
			name = fmt.Sprintf("rule-%d", i+1)
		}

		rule := &Rule{
			Name:           name,
			RequireMention: def.RequireMention,
			Enabled:        def.Enabled == nil || *def.Enabled,
			HandlerRef:     def.Handler,
		}

		var err error
		if rule.Channel, err = compileField(def.Channel); err != nil {
			problems = append(problems, fmt.Errorf("rule %q: channel: %w", name, err))
		}
		if rule.Sender, err = compileField(def.User); err != nil {
			problems = append(problems, fmt.Errorf("rule %q: user: %w", name, err))
		}
		if rule.Text, err = compileField(def.Match); err != nil {
			problems = append(problems, fmt.Errorf("rule %q: match: %w", name, err))
		}

		if def.Handler == "" {
			problems = append(problems, fmt.Errorf("rule %q: handler reference is required", name))
		} else if rule.Handler, err = registry.Resolve(def.Handler); err != nil {
			problems = append(problems, fmt.Errorf("rule %q: %w", name, err))
		}

		set.rules = append(set.rules, rule)
	}

	if len(problems) > 0 {
		return nil, &gwerrors.ConfigurationError{Problems: problems}
	}
	return set, nil
}

// compileField compiles one matcher field; an absent field matches anything.
func compileField(raw string) (pattern.Pattern, error) {
	if raw == "" {
		raw = "*"
	}
	return pattern.Compile(raw)
}

// Match evaluates the event against the rules in declaration order and
// returns the first rule whose matchers all pass, or nil when none do.
func (s *RuleSet) Match(evt *event.Event) *Rule {
	for _, r := range s.rules {
		if r.matches(evt) {
			return r
		}
	}
	return nil
}

// Len returns the number of rules, counting disabled ones.
func (s *RuleSet) Len() int {
	return len(s.rules)
}

// Summary describes the loaded rule set for the health surface.
type Summary struct {
	Total    int `json:"total"`
	Enabled  int `json:"enabled"`
	Disabled int `json:"disabled"`
}

// Summarize counts enabled and disabled rules.
func (s *RuleSet) Summarize() Summary {
	sum := Summary{Total: len(s.rules)}
	for _, r := range s.rules {
		if r.Enabled {
			sum.Enabled++
		} else {
			sum.Disabled++
		}
	}
	return sum
}

// Definitions re-serializes the rule set back into definitions. Loading the
// result produces an equivalently matching set; pattern spelling is
// preserved verbatim.
func (s *RuleSet) Definitions() []Definition {
	defs := make([]Definition, 0, len(s.rules))
	for _, r := range s.rules {
		enabled := r.Enabled
		defs = append(defs, Definition{
			Name:           r.Name,
			Channel:        r.Channel.String(),
			User:           r.Sender.String(),
			Match:          r.Text.String(),
			RequireMention: r.RequireMention,
			Enabled:        &enabled,
			Handler:        r.HandlerRef,
		})
	}
	return defs
}
