package nointerface_test

import (
	"testing"

	"golang.org/x/tools/go/analysis/analysistest"

	"github.com/rotaforge/scheduler/tools/linters/nointerface"
)

func TestAnalyzer(t *testing.T) {
	testdata := analysistest.TestData()
	analysistest.Run(t, testdata, nointerface.Analyzer, "a")
}
