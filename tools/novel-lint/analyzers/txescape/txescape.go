// Package txescape detects store calls that bypass the transaction inside
// a WithTx callback.
package txescape

import (
	"go/ast"
	"go/types"

	"golang.org/x/tools/go/analysis"
	"golang.org/x/tools/go/analysis/passes/inspect"
	"golang.org/x/tools/go/ast/inspector"
)

// Analyzer reports calls on the receiver of WithTx made from inside its
// callback. Those calls run outside the transaction and are not rolled back.
var Analyzer = &analysis.Analyzer{
	Name:     "txescape",
	Doc:      "detects store calls inside a WithTx callback that do not use the transaction",
	Requires: []*analysis.Analyzer{inspect.Analyzer},
	Run:      run,
}

func run(pass *analysis.Pass) (any, error) {
	inspect := pass.ResultOf[inspect.Analyzer].(*inspector.Inspector)

	inspect.Preorder([]ast.Node{(*ast.CallExpr)(nil)}, func(n ast.Node) {
		call := n.(*ast.CallExpr)
		sel, ok := call.Fun.(*ast.SelectorExpr)
		if !ok || sel.Sel.Name != "WithTx" || len(call.Args) == 0 {
			return
		}
		fn, ok := call.Args[len(call.Args)-1].(*ast.FuncLit)
		if !ok {
			return
		}

		store := types.ExprString(sel.X)
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			inner, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			innerSel, ok := inner.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			if types.ExprString(innerSel.X) == store {
				pass.Reportf(inner.Pos(), "%s.%s called inside WithTx, use the transaction", store, innerSel.Sel.Name)
			}
			return true
		})
	})

	return nil, nil
}
