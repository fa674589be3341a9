// novel-lint checks the story store and memory index usage patterns of
// lore-novel.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/lore-novel/tools/novel-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
