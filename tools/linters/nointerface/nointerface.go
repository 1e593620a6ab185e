// Package nointerface flags the spelled-out empty interface. Since Go 1.18
// the predeclared alias any reads better, and the analyzer ships a
// suggested fix so -fix rewrites call sites mechanically.
package nointerface

import (
	"go/ast"

	"golang.org/x/tools/go/analysis"

	"github.com/rotaforge/scheduler/tools/linters/internal/nolint"
)

// Analyzer flags interface{} and offers the any replacement.
var Analyzer = &analysis.Analyzer{
	Name: "nointerface",
	Doc:  "checks for interface{} and suggests the any alias",
	Run:  run,
}

func run(pass *analysis.Pass) (any, error) {
	for _, file := range pass.Files {
		ast.Inspect(file, func(n ast.Node) bool {
			iface, ok := n.(*ast.InterfaceType)
			if !ok {
				return true
			}
			// Only the empty interface has an alias.
			if iface.Methods != nil && len(iface.Methods.List) > 0 {
				return true
			}
			if nolint.Suppressed(pass.Fset, file, iface.Pos(), "nointerface") {
				return true
			}
			pass.Report(analysis.Diagnostic{
				Pos:     iface.Pos(),
				End:     iface.End(),
				Message: "replace interface{} with any",
				SuggestedFixes: []analysis.SuggestedFix{{
					Message: "Replace interface{} with any",
					TextEdits: []analysis.TextEdit{{
						Pos:     iface.Pos(),
						End:     iface.End(),
						NewText: []byte("any"),
					}},
				}},
			})
			return true
		})
	}
	return nil, nil
}
