// Package translator turns natural-language questions into candidate
// queries. Two strategies implement the same contract: a deterministic
// pattern catalog that works offline, and a model-backed strategy that
// calls a configured language model endpoint. The orchestrator decides
// which to use and when to fall back.
package translator

import (
	"context"

	"github.com/queryline-io/queryline-engine/pkg/models"
)

// Strategy is the translation contract shared by all implementations.
// Implementations must be safe for concurrent use.
type Strategy interface {
	Translate(ctx context.Context, req *models.TranslationRequest) (*models.TranslationResult, error)

	// Name identifies the strategy in logs and responses.
	Name() string
}
