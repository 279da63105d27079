package queryparser

import (
	"context"

	"github.com/lgoty/benefitsearch/internal/domain/query"
)

// SemanticParser proposes a structured parse using an external model.
// Its output is untrusted and is sanitized before use.
type SemanticParser interface {
	Parse(ctx context.Context, text, userRegion string) (query.Parsed, error)
}
