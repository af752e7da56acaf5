package triage

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nhle/mailtriage/internal/model"
)

// Rule maps one category to its ordered trigger phrases.
type Rule struct {
	Category model.Category `yaml:"category"`
	Phrases  []string       `yaml:"phrases"`

	// Confidence overrides the classifier's default rule confidence
	// when set. An explicit 0 is honored.
	Confidence *float64 `yaml:"confidence,omitempty"`
}

// WithConfidence returns a copy of r with its own confidence.
func (r Rule) WithConfidence(v float64) Rule {
	r.Confidence = &v
	return r
}

// RuleTable is an ordered list of rules. Declaration order is the
// tie-break order used by the classifier.
type RuleTable []Rule

// DefaultRules returns the built-in keyword table.
func DefaultRules() RuleTable {
	return RuleTable{
		{Category: model.CategoryPriorityInbox, Phrases: []string{
			"follow up", "question", "need", "asap", "approve",
			"feedback", "waiting on", "deadline", "important",
		}},
		{Category: model.CategoryMainInbox, Phrases: []string{
			"update", "information", "hello", "hi", "greetings",
			"thanks", "thank you",
		}},
		{Category: model.CategoryUrgentAlerts, Phrases: []string{
			"warning", "critical", "error", "alert", "urgent",
			"failed", "down", "issue", "emergency", "breach",
		}},
		{Category: model.CategoryBasicAlerts, Phrases: []string{
			"report", "summary", "update", "daily stats",
			"weekly stats", "monthly stats", "notification",
		}},
		{Category: model.CategoryFYICC, Phrases: []string{
			"fyi", "for your information", "just letting you know",
			"for your awareness", "in case you missed",
		}},
		{Category: model.CategoryBillingFinance, Phrases: []string{
			"invoice", "payment", "receipt", "subscription", "charge",
			"statement", "bill", "transaction", "finance",
		}},
		{Category: model.CategorySchedulingCalendars, Phrases: []string{
			"invite", "meeting", "calendar", "schedule", "appointment",
			"call", "booking", "zoom", "google meet", "teams",
		}},
		{Category: model.CategoryMarketingPromotions, Phrases: []string{
			"webinar", "deal", "promo", "save", "limited time",
			"offer", "discount", "subscribe", "newsletter",
		}},
		{Category: model.CategoryTeamInternal, Phrases: []string{
			"team", "internal", "quick question", "can you check", "office",
		}},
		{Category: model.CategoryProjectsClients, Phrases: []string{
			"project", "client", "proposal", "deliverable", "scope", "contract",
		}},
	}
}

// Validate rejects unknown categories, duplicate categories, empty
// phrases and out-of-range confidences.
func (t RuleTable) Validate() error {
	seen := make(map[model.Category]bool, len(t))
	for i, r := range t {
		if !r.Category.Valid() {
			return fmt.Errorf("rule %d: unknown category %q", i, r.Category)
		}
		if seen[r.Category] {
			return fmt.Errorf("rule %d: category %q declared twice", i, r.Category)
		}
		seen[r.Category] = true

		if c := r.Confidence; c != nil && (*c < 0 || *c > 1) {
			return fmt.Errorf("rule %d (%s): confidence must be within [0,1], got %v", i, r.Category, *c)
		}
		for j, p := range r.Phrases {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("rule %d (%s): phrase %d is empty", i, r.Category, j)
			}
		}
	}
	return nil
}

// normalized returns a copy with every phrase lowercased so lookups
// only lowercase the subject.
func (t RuleTable) normalized() RuleTable {
	out := make(RuleTable, len(t))
	for i, r := range t {
		phrases := make([]string, len(r.Phrases))
		for j, p := range r.Phrases {
			phrases[j] = strings.ToLower(p)
		}
		out[i] = Rule{Category: r.Category, Phrases: phrases, Confidence: r.Confidence}
	}
	return out
}

type rulesFile struct {
	Rules RuleTable `yaml:"rules"`
}

// ParseRules decodes a YAML rule table of the form
//
//	rules:
//	  - category: billing_finance
//	    phrases: [invoice, receipt]
//	    confidence: 0.9
func ParseRules(data []byte) (RuleTable, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decoding rules: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rules: table is empty")
	}
	if err := f.Rules.Validate(); err != nil {
		return nil, err
	}
	return f.Rules, nil
}

// LoadRules reads a YAML rule table from path.
func LoadRules(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return nil, fmt.Errorf("loading rules %s: %w", path, err)
	}
	return rules, nil
}
