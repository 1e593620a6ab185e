package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/rotaforge/scheduler/tools/linters/timeutc"
)

func main() {
	singlechecker.Main(timeutc.Analyzer)
}
