package translator

import "strings"

// IntentType is a coarse classification of what a question asks for.
type IntentType string

const (
	IntentRetrieve  IntentType = "retrieve"
	IntentAggregate IntentType = "aggregate"
	IntentCompare   IntentType = "compare"
	IntentTrend     IntentType = "trend"
	IntentGeneral   IntentType = "general"
)

// Intent is the deterministic analysis of a question's shape. The pattern
// strategy uses it to pick chart hints and clarification wording.
type Intent struct {
	Type     IntentType
	Entities []string
}

var intentTypeKeywords = []struct {
	intentType IntentType
	words      []string
}{
	{IntentRetrieve, []string{"show", "list", "display", "get"}},
	{IntentAggregate, []string{"count", "how many", "number of"}},
	{IntentCompare, []string{"compare", "vs", "versus", "difference"}},
	{IntentTrend, []string{"trend", "over time", "timeline"}},
}

var entityKeywords = []struct {
	entity string
	words  []string
}{
	{"sites", []string{"site", "location", "facility"}},
	{"inventory", []string{"inventory", "stock", "supplies"}},
	{"shipments", []string{"shipment", "delivery", "shipping"}},
	{"vendors", []string{"vendor", "supplier"}},
	{"studies", []string{"study", "trial"}},
	{"tasks", []string{"task", "action", "priority"}},
}

// ClassifyIntent analyzes a question's type and mentioned entities. Purely
// lexical, so identical questions always classify identically.
func ClassifyIntent(question string) Intent {
	lower := strings.ToLower(question)

	intent := Intent{Type: IntentGeneral}
	for _, group := range intentTypeKeywords {
		if containsAny(lower, group.words) {
			intent.Type = group.intentType
			break
		}
	}
	for _, group := range entityKeywords {
		if containsAny(lower, group.words) {
			intent.Entities = append(intent.Entities, group.entity)
		}
	}
	return intent
}

// chartFor maps an intent type to a default chart when a catalog entry does
// not specify one.
func (i Intent) chartFor() string {
	switch i.Type {
	case IntentAggregate, IntentCompare:
		return "bar"
	case IntentTrend:
		return "line"
	default:
		return "table"
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
