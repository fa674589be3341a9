// Package analyzers provides all custom static analyzers for lore-novel.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/lore-novel/tools/novel-lint/analyzers/loopcall"
	"github.com/ersonp/lore-novel/tools/novel-lint/analyzers/txescape"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		loopcall.Analyzer,
		txescape.Analyzer,
	}
}
