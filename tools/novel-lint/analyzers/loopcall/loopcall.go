// Package loopcall detects embedding, vector search and LLM calls inside loops.
package loopcall

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer detects network calls inside loops that should be batched.
var Analyzer = &analysis.Analyzer{
	Name:     "loopcall",
	Doc:      "detects embedding, vector search and LLM calls inside loops that should be batched",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

// remoteMethods are method names that leave the process. Store lookups are
// local SQLite reads and are not listed.
var remoteMethods = map[string]string{
	"Embed":                    "EmbedBatch",
	"SaveMemories":             "one SaveMemories call",
	"SearchMemories":           "",
	"AnalyzeIdentityExposures": "",
}

func run(pass *analysis.Pass) (any, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	nodeFilter := []ast.Node{
		(*ast.RangeStmt)(nil),
		(*ast.ForStmt)(nil),
	}

	inspect.Preorder(nodeFilter, func(n ast.Node) {
		var body *ast.BlockStmt
		switch stmt := n.(type) {
		case *ast.RangeStmt:
			body = stmt.Body
		case *ast.ForStmt:
			body = stmt.Body
		}
		if body == nil {
			return
		}

		ast.Inspect(body, func(n ast.Node) bool {
			if _, ok := n.(*ast.FuncLit); ok {
				return false
			}
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}

			name := sel.Sel.Name
			batch, remote := remoteMethods[name]
			switch {
			case !remote:
			case batch != "":
				pass.Reportf(call.Pos(), "%s called inside loop, use %s", name, batch)
			default:
				pass.Reportf(call.Pos(), "%s called inside loop, each call is a network round trip", name)
			}
			return true
		})
	})

	return nil, nil
}
