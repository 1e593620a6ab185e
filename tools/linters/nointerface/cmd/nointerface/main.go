package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/rotaforge/scheduler/tools/linters/nointerface"
)

func main() {
	singlechecker.Main(nointerface.Analyzer)
}
