// Package timeutc flags time.Now() calls that are not immediately chained
// with .UTC() or .In().
//
// Every timestamp this codebase persists or compares is zone-normalized: an
// instant is either converted to UTC before storage or observed in an
// explicit location for calendar math. A bare time.Now() leaks the host zone
// into that arithmetic, so the analyzer requires the conversion at the call
// site. Clock injection via the time.Now function value is untouched.
package timeutc

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"

	"github.com/rotaforge/scheduler/tools/linters/internal/nolint"
)

// Analyzer flags unconverted time.Now() calls.
var Analyzer = &analysis.Analyzer{
	Name: "timeutc",
	Doc:  "checks that time.Now() is chained with .UTC() or .In() so no host-zone instants escape",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		// First walk: remember the Now() calls that a .UTC() or .In()
		// selector hangs off.
		converted := make(map[*ast.CallExpr]bool)
		ast.Inspect(file, func(n ast.Node) bool {
			sel, ok := n.(*ast.SelectorExpr)
			if !ok || (sel.Sel.Name != "UTC" && sel.Sel.Name != "In") {
				return true
			}
			if call, ok := sel.X.(*ast.CallExpr); ok && isNowCall(call) {
				converted[call] = true
			}
			return true
		})

		ast.Inspect(file, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok || !isNowCall(call) || converted[call] {
				return true
			}
			if nolint.Suppressed(pass.Fset, file, call.Pos(), "timeutc") {
				return true
			}
			pass.Reportf(call.Pos(), "chain time.Now() with .UTC() or .In() so the host zone cannot leak")
			return true
		})
	}
	return nil, nil
}

func isNowCall(call *ast.CallExpr) bool {
	sel, ok := call.Fun.(*ast.SelectorExpr)
	if !ok || sel.Sel.Name != "Now" {
		return false
	}
	pkg, ok := sel.X.(*ast.Ident)
	return ok && pkg.Name == "time"
}
