package triage

import (
	"strings"

	"github.com/nhle/mailtriage/internal/model"
)

// Default confidence knobs.
const (
	DefaultThreshold          = 0.6
	DefaultRuleConfidence     = 0.8
	DefaultFallbackConfidence = 0.7
)

// Classifier assigns a single category to a message subject by literal,
// case-insensitive substring matching. It never fails.
type Classifier struct {
	rules              RuleTable
	threshold          float64
	ruleConfidence     float64
	fallbackConfidence float64
}

// Option customizes a Classifier.
type Option func(*Classifier)

// WithThreshold sets the minimum winning confidence.
func WithThreshold(v float64) Option {
	return func(c *Classifier) { c.threshold = v }
}

// WithRuleConfidence sets the confidence for rules without their own.
func WithRuleConfidence(v float64) Option {
	return func(c *Classifier) { c.ruleConfidence = v }
}

// WithFallbackConfidence sets the confidence of the synthesized
// needs_review candidate.
func WithFallbackConfidence(v float64) Option {
	return func(c *Classifier) { c.fallbackConfidence = v }
}

// NewClassifier creates a classifier over the given rules. A nil table
// uses DefaultRules.
func NewClassifier(rules RuleTable, opts ...Option) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	c := &Classifier{
		rules:              rules.normalized(),
		threshold:          DefaultThreshold,
		ruleConfidence:     DefaultRuleConfidence,
		fallbackConfidence: DefaultFallbackConfidence,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClassifierFromConfig builds a classifier from the classifier config
// section, loading the rules file when one is set.
func NewClassifierFromConfig(cfg model.ClassifierConfig) (*Classifier, error) {
	var rules RuleTable
	if cfg.RulesFile != "" {
		loaded, err := LoadRules(cfg.RulesFile)
		if err != nil {
			return nil, err
		}
		rules = loaded
	}
	return NewClassifier(rules,
		WithThreshold(cfg.Threshold),
		WithRuleConfidence(cfg.RuleConfidence),
		WithFallbackConfidence(cfg.FallbackConfidence),
	), nil
}

// Candidates returns one candidate per category with a matching phrase,
// in rule declaration order. When nothing matches it returns the single
// needs_review fallback candidate.
func (c *Classifier) Candidates(subject string) []model.Classification {
	subj := strings.ToLower(subject)

	var out []model.Classification
	for _, r := range c.rules {
		for _, phrase := range r.Phrases {
			if strings.Contains(subj, phrase) {
				conf := c.ruleConfidence
				if r.Confidence != nil {
					conf = *r.Confidence
				}
				out = append(out, model.Classification{
					Category:   r.Category,
					Confidence: conf,
				})
				break
			}
		}
	}

	if len(out) == 0 {
		out = append(out, model.Classification{
			Category:   model.CategoryNeedsReview,
			Confidence: c.fallbackConfidence,
		})
	}
	return out
}

// Classify resolves the candidates for subject to exactly one
// classification: highest confidence wins, ties go to the first declared
// rule, and a winner below the threshold is demoted to needs_review.
func (c *Classifier) Classify(subject string) model.Classification {
	candidates := c.Candidates(subject)

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}

	// Unreachable with the default 0.8/0.7 confidences.
	if best.Confidence < c.threshold {
		return model.Classification{
			Category:   model.CategoryNeedsReview,
			Confidence: best.Confidence,
			Demoted:    true,
		}
	}
	return best
}
