package translator

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// clarifyConfidence is the confidence carried by the "no entry matched"
// terminal result.
const clarifyConfidence = 0.1

// CatalogEntry is one pattern in the ordered catalog. Order is significant:
// entries are evaluated top to bottom and the first match wins, so specific
// entries must precede general ones.
type CatalogEntry struct {
	Name string `yaml:"name"`
	// Match lists lowercase substrings that must ALL appear in the question.
	Match []string `yaml:"match"`
	// Query is the SQL template emitted on match.
	Query string `yaml:"query"`
	// DocumentQuery is the JSON specification emitted instead of Query when
	// the request targets a document engine. Entries without one are skipped
	// for document requests.
	DocumentQuery string  `yaml:"document_query,omitempty"`
	Explanation   string  `yaml:"explanation"`
	Chart         string  `yaml:"chart,omitempty"`
	Confidence    float64 `yaml:"confidence"`
}

func (e *CatalogEntry) matches(lowerQuestion string) bool {
	for _, term := range e.Match {
		if !strings.Contains(lowerQuestion, term) {
			return false
		}
	}
	return len(e.Match) > 0
}

// PatternStrategy translates questions by matching an ordered catalog of
// known intents. Always available, deterministic, fully offline.
type PatternStrategy struct {
	catalog []CatalogEntry
	logger  *zap.Logger
}

var _ Strategy = (*PatternStrategy)(nil)

// NewPatternStrategy creates a pattern strategy with the built-in catalog.
func NewPatternStrategy(logger *zap.Logger) *PatternStrategy {
	return &PatternStrategy{
		catalog: defaultCatalog(),
		logger:  logger.Named("translator.pattern"),
	}
}

// NewPatternStrategyFromFile loads the catalog from a YAML file. The file
// replaces the built-in catalog entirely.
func NewPatternStrategyFromFile(path string, logger *zap.Logger) (*PatternStrategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern catalog: %w", err)
	}

	var catalog []CatalogEntry
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("parse pattern catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, fmt.Errorf("pattern catalog %s is empty", path)
	}
	for i := range catalog {
		if len(catalog[i].Match) == 0 || catalog[i].Query == "" {
			return nil, fmt.Errorf("pattern catalog entry %d (%s) needs match terms and a query",
				i, catalog[i].Name)
		}
	}

	return &PatternStrategy{catalog: catalog, logger: logger.Named("translator.pattern")}, nil
}

// Name implements Strategy.
func (s *PatternStrategy) Name() string { return "pattern" }

// Translate implements Strategy. It never returns an error: an unmatched
// question yields a clarify result, which is a valid terminal outcome.
func (s *PatternStrategy) Translate(_ context.Context, req *models.TranslationRequest) (*models.TranslationResult, error) {
	lower := strings.ToLower(req.Question)
	intent := ClassifyIntent(req.Question)

	for _, entry := range s.catalog {
		if !entry.matches(lower) {
			continue
		}

		query := entry.Query
		dialect := models.DialectSQL
		if req.Dialect == models.DialectDocument {
			if entry.DocumentQuery == "" {
				continue
			}
			query = entry.DocumentQuery
			dialect = models.DialectDocument
		}

		chart := entry.Chart
		if chart == "" {
			chart = intent.chartFor()
		}

		s.logger.Debug("pattern matched",
			zap.String("entry", entry.Name),
			zap.String("intent", string(intent.Type)))

		return &models.TranslationResult{
			Query:          query,
			Dialect:        dialect,
			Explanation:    entry.Explanation,
			SuggestedChart: models.ChartType(chart),
			Confidence:     entry.Confidence,
		}, nil
	}

	return s.clarifyResult(intent), nil
}

func (s *PatternStrategy) clarifyResult(intent Intent) *models.TranslationResult {
	explanation := "I couldn't match that question to anything I know. " +
		"Try asking about inventory levels, shipments, sites, vendors, studies, or tasks."
	if len(intent.Entities) > 0 {
		explanation = fmt.Sprintf(
			"I can see you're asking about %s, but I need more detail. "+
				"Try naming what you want to see, for example \"show low stock\" or \"count shipments by site\".",
			strings.Join(intent.Entities, " and "))
	}

	return &models.TranslationResult{
		Explanation:        explanation,
		SuggestedChart:     models.ChartNone,
		Confidence:         clarifyConfidence,
		NeedsClarification: true,
	}
}

// defaultCatalog covers the recurring questions of a trial supply
// operation. Specific multi-term entries come before loose single-term
// ones.
func defaultCatalog() []CatalogEntry {
	return []CatalogEntry{
		{
			Name:  "low-stock",
			Match: []string{"low", "stock"},
			Query: "SELECT i.item_name, s.site_name, i.quantity, i.reorder_level " +
				"FROM inventory i JOIN sites s ON i.site_id = s.id " +
				"WHERE i.quantity < i.reorder_level ORDER BY i.quantity ASC",
			DocumentQuery: `{"op":"find","collection":"inventory","filter":{"$expr":{"$lt":["$quantity","$reorder_level"]}},"sort":{"quantity":1}}`,
			Explanation:   "Items whose on-hand quantity has fallen below the reorder level, lowest first.",
			Chart:         "bar",
			Confidence:    1.0,
		},
		{
			Name:  "expired-lots",
			Match: []string{"expired"},
			Query: "SELECT i.item_name, i.lot_number, i.expiry_date, s.site_name " +
				"FROM inventory i JOIN sites s ON i.site_id = s.id " +
				"WHERE i.expiry_date < CURRENT_DATE ORDER BY i.expiry_date ASC",
			DocumentQuery: `{"op":"aggregate","collection":"inventory","pipeline":[{"$match":{"$expr":{"$lt":["$expiry_date","$$NOW"]}}},{"$sort":{"expiry_date":1}}]}`,
			Explanation:   "Inventory lots whose expiry date has already passed.",
			Chart:         "table",
			Confidence:    1.0,
		},
		{
			Name:  "expiring-soon",
			Match: []string{"expir"},
			Query: "SELECT i.item_name, i.lot_number, i.expiry_date, s.site_name " +
				"FROM inventory i JOIN sites s ON i.site_id = s.id " +
				"WHERE i.expiry_date BETWEEN CURRENT_DATE AND CURRENT_DATE + INTERVAL '30 days' " +
				"ORDER BY i.expiry_date ASC",
			Explanation: "Inventory lots expiring within the next 30 days.",
			Chart:       "table",
			Confidence:  0.8,
		},
		{
			Name:  "delayed-shipments",
			Match: []string{"delayed"},
			Query: "SELECT sh.tracking_number, sh.status, sh.expected_date, s.site_name " +
				"FROM shipments sh JOIN sites s ON sh.site_id = s.id " +
				"WHERE sh.status = 'delayed' ORDER BY sh.expected_date ASC",
			DocumentQuery: `{"op":"find","collection":"shipments","filter":{"status":"delayed"},"sort":{"expected_date":1}}`,
			Explanation:   "Shipments currently flagged as delayed, oldest expected date first.",
			Chart:         "table",
			Confidence:    1.0,
		},
		{
			Name:  "shipments-by-site",
			Match: []string{"shipment", "site"},
			Query: "SELECT s.site_name, COUNT(*) AS shipment_count " +
				"FROM shipments sh JOIN sites s ON sh.site_id = s.id " +
				"GROUP BY s.site_name ORDER BY shipment_count DESC",
			DocumentQuery: `{"op":"aggregate","collection":"shipments","pipeline":[{"$group":{"_id":"$site_name","shipment_count":{"$sum":1}}},{"$sort":{"shipment_count":-1}}]}`,
			Explanation:   "Shipment counts grouped by destination site.",
			Chart:         "bar",
			Confidence:    0.9,
		},
		{
			Name:  "open-tasks",
			Match: []string{"task"},
			Query: "SELECT t.title, t.priority, t.due_date, t.status " +
				"FROM tasks t WHERE t.status != 'done' " +
				"ORDER BY t.priority DESC, t.due_date ASC",
			DocumentQuery: `{"op":"find","collection":"tasks","filter":{"status":{"$ne":"done"}},"sort":{"priority":-1,"due_date":1}}`,
			Explanation:   "Open tasks ordered by priority and due date.",
			Chart:         "table",
			Confidence:    0.9,
		},
		{
			Name:          "vendors",
			Match:         []string{"vendor"},
			Query:         "SELECT v.vendor_name, v.contact_email, v.rating FROM vendors v ORDER BY v.vendor_name ASC",
			DocumentQuery: `{"op":"find","collection":"vendors","filter":{},"sort":{"vendor_name":1}}`,
			Explanation:   "All vendors with contact details and rating.",
			Chart:         "table",
			Confidence:    0.8,
		},
		{
			Name:          "study-count",
			Match:         []string{"how many", "stud"},
			Query:         "SELECT COUNT(*) AS study_count FROM studies",
			DocumentQuery: `{"op":"count","collection":"studies","filter":{}}`,
			Explanation:   "Total number of studies on record.",
			Chart:         "table",
			Confidence:    1.0,
		},
	}
}
