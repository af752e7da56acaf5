package model

import "sort"

// Category is one label from the fixed triage enumeration.
type Category string

const (
	CategoryPriorityInbox       Category = "priority_inbox"
	CategoryMainInbox           Category = "main_inbox"
	CategoryUrgentAlerts        Category = "urgent_alerts"
	CategoryBasicAlerts         Category = "basic_alerts"
	CategoryFYICC               Category = "fyi_cc"
	CategoryBillingFinance      Category = "billing_finance"
	CategorySchedulingCalendars Category = "scheduling_calendars"
	CategoryMarketingPromotions Category = "marketing_promotions"
	CategoryTeamInternal        Category = "team_internal"
	CategoryProjectsClients     Category = "projects_clients"
	CategoryNeedsReview         Category = "needs_review"
	CategoryRulesInTraining     Category = "rules_in_training"
)

// categoryOrder is the declaration order used for sorter output and
// orchestration passes.
var categoryOrder = []Category{
	CategoryPriorityInbox,
	CategoryMainInbox,
	CategoryUrgentAlerts,
	CategoryBasicAlerts,
	CategoryFYICC,
	CategoryBillingFinance,
	CategorySchedulingCalendars,
	CategoryMarketingPromotions,
	CategoryTeamInternal,
	CategoryProjectsClients,
	CategoryNeedsReview,
	CategoryRulesInTraining,
}

var categoryDisplayNames = map[Category]string{
	CategoryPriorityInbox:       "Priority",
	CategoryMainInbox:           "Primary",
	CategoryUrgentAlerts:        "Urgent Alerts",
	CategoryBasicAlerts:         "Notifications",
	CategoryFYICC:               "FYI & CC",
	CategoryBillingFinance:      "Billing & Finance",
	CategorySchedulingCalendars: "Calendar Events",
	CategoryMarketingPromotions: "Marketing",
	CategoryTeamInternal:        "Team",
	CategoryProjectsClients:     "Projects & Clients",
	CategoryNeedsReview:         "Needs Review",
	CategoryRulesInTraining:     "Training",
}

// Categories returns every known category in declaration order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	_, ok := categoryDisplayNames[c]
	return ok
}

// DisplayName returns the user-facing label for the category, falling
// back to the raw identifier for unknown values.
func (c Category) DisplayName() string {
	if name, ok := categoryDisplayNames[c]; ok {
		return name
	}
	return string(c)
}

// ParseCategory converts a raw string into a known Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(s)
	return c, c.Valid()
}

// Categorized maps every category to the messages assigned to it.
// A key may be present with an empty list.
type Categorized map[Category][]TriagedMessage

// NewCategorized returns a map pre-seeded with an empty list for every
// known category.
func NewCategorized() Categorized {
	c := make(Categorized, len(categoryOrder))
	for _, cat := range categoryOrder {
		c[cat] = []TriagedMessage{}
	}
	return c
}

// OrderedKeys returns the map's categories with known categories first in
// declaration order, followed by any unknown keys sorted lexically.
func (c Categorized) OrderedKeys() []Category {
	keys := make([]Category, 0, len(c))
	seen := make(map[Category]bool, len(c))
	for _, cat := range categoryOrder {
		if _, ok := c[cat]; ok {
			keys = append(keys, cat)
			seen[cat] = true
		}
	}

	var extra []Category
	for cat := range c {
		if !seen[cat] {
			extra = append(extra, cat)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })

	return append(keys, extra...)
}

// Total returns the number of messages across all categories.
func (c Categorized) Total() int {
	n := 0
	for _, msgs := range c {
		n += len(msgs)
	}
	return n
}
