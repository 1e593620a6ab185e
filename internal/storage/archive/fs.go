package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/engine"
)

// FileArchiver writes run documents to a local directory, one file per run
// under <dir>/<run-date>/<run-id>.json. It exists for development and
// air-gapped deployments; production uses AuditArchiver.
type FileArchiver struct {
	dir string
}

var _ engine.Archiver = (*FileArchiver)(nil)

// NewFileArchiver creates the base directory if needed.
func NewFileArchiver(dir string) (*FileArchiver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &FileArchiver{dir: dir}, nil
}

// ArchiveRun writes the run document. The write goes through a temp file
// and rename so a crashed archival never leaves a truncated document.
func (a *FileArchiver) ArchiveRun(ctx context.Context, summary *domain.RunSummary, audits []domain.AuditRow, conflicts []domain.ConflictRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(runDocument(summary, audits, conflicts), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run document: %w", err)
	}

	dateDir := filepath.Join(a.dir, summary.StartedAt.Format("2006-01-02"))
	if err := os.MkdirAll(dateDir, 0o755); err != nil {
		return fmt.Errorf("failed to create date directory: %w", err)
	}

	final := filepath.Join(dateDir, summary.RunID+".json")
	tmp := final + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run document: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to finalize run document: %w", err)
	}
	return nil
}

// ListArchivedRuns returns the run ids archived for one run date.
func (a *FileArchiver) ListArchivedRuns(runDate time.Time) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.dir, runDate.Format("2006-01-02")))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}
