// Package nolint resolves //nolint comments for the custom analyzers.
//
// A bare //nolint on the flagged line or the line above suppresses every
// linter. //nolint:name1,name2 suppresses only the named ones.
package nolint

import (
	"go/ast"
	"go/token"
	"strings"
)

// Suppressed reports whether a nolint comment in file covers pos for the
// named linter.
func Suppressed(fset *token.FileSet, file *ast.File, pos token.Pos, linter string) bool {
	line := fset.Position(pos).Line
	for _, group := range file.Comments {
		for _, comment := range group.List {
			at := fset.Position(comment.Pos()).Line
			if at != line && at != line-1 {
				continue
			}
			if matches(comment.Text, linter) {
				return true
			}
		}
	}
	return false
}

func matches(text, linter string) bool {
	idx := strings.Index(text, "nolint")
	if idx < 0 {
		return false
	}
	spec := text[idx+len("nolint"):]
	if !strings.HasPrefix(spec, ":") {
		// Bare //nolint suppresses everything.
		return true
	}
	spec = strings.TrimPrefix(spec, ":")
	if i := strings.IndexAny(spec, " \t"); i >= 0 {
		spec = spec[:i]
	}
	for _, name := range strings.Split(spec, ",") {
		if strings.TrimSpace(name) == linter {
			return true
		}
	}
	return false
}
