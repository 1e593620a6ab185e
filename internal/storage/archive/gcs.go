// Package archive exports finished runs to object storage. One run becomes
// one JSON document under audit/<run-date>/<run-id>.json, so downstream
// consumers can pull a day's worth of materialization history without
// touching the operational database.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/rotaforge/scheduler/internal/domain"
	"github.com/rotaforge/scheduler/internal/engine"
)

// AuditArchiver writes run documents to a GCS bucket.
type AuditArchiver struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ engine.Archiver = (*AuditArchiver)(nil)

// NewAuditArchiver creates an archiver for the given bucket. It assumes the
// client is authenticated (e.g. via GOOGLE_APPLICATION_CREDENTIALS). An
// empty prefix defaults to "audit".
func NewAuditArchiver(ctx context.Context, bucket, prefix string) (*AuditArchiver, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	if prefix == "" {
		prefix = "audit"
	}
	return &AuditArchiver{client: client, bucket: bucket, prefix: strings.TrimSuffix(prefix, "/")}, nil
}

func (a *AuditArchiver) Close() error {
	return a.client.Close()
}

func objectName(prefix string, runDate time.Time, runID string) string {
	return fmt.Sprintf("%s/%s/%s.json", prefix, runDate.Format("2006-01-02"), runID)
}

// ArchiveRun uploads the run's summary together with every audit and
// conflict row it produced. Uploads overwrite, so a retried archival of the
// same run converges on the same object.
func (a *AuditArchiver) ArchiveRun(ctx context.Context, summary *domain.RunSummary, audits []domain.AuditRow, conflicts []domain.ConflictRow) error {
	doc := runDocument(summary, audits, conflicts)
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal run document: %w", err)
	}

	obj := a.client.Bucket(a.bucket).Object(objectName(a.prefix, summary.StartedAt, summary.RunID))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write object: %w", err)
	}
	return w.Close()
}

// ListArchivedRuns returns the object names archived for one run date.
func (a *AuditArchiver) ListArchivedRuns(ctx context.Context, runDate time.Time) ([]string, error) {
	prefix := fmt.Sprintf("%s/%s/", a.prefix, runDate.Format("2006-01-02"))
	it := a.client.Bucket(a.bucket).Objects(ctx, &storage.Query{Prefix: prefix})

	var names []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// === Wire document ===
//
// Field names mirror the database columns.

type document struct {
	Summary   summaryDoc    `json:"summary"`
	Audits    []auditDoc    `json:"audits"`
	Conflicts []conflictDoc `json:"conflicts"`
}

type summaryDoc struct {
	RunID            string     `json:"run_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	DurationSec      float64    `json:"duration_s"`
	WeeklyTemplates  int        `json:"weekly_templates"`
	MonthlyTemplates int        `json:"monthly_templates"`
	Created          int        `json:"created"`
	Duplicates       int        `json:"duplicates"`
	Overlaps         int        `json:"overlaps"`
	Errors           int        `json:"errors"`
	Retracted        int        `json:"retracted"`
	Error            string     `json:"error,omitempty"`
}

type auditDoc struct {
	RunDate    string    `json:"run_date"`
	TemplateID int64     `json:"template_id"`
	InstanceID *int64    `json:"instance_id,omitempty"`
	EmployeeID int64     `json:"employee_id"`
	ClientID   int64     `json:"client_id"`
	StartTS    time.Time `json:"start_ts"`
	EndTS      time.Time `json:"end_ts"`
	Outcome    string    `json:"outcome"`
	ErrorDesc  string    `json:"error_desc,omitempty"`
	Kind       string    `json:"kind"`
	Pattern    string    `json:"pattern"`
}

type conflictDoc struct {
	TemplateID      int64     `json:"template_id"`
	EmployeeID      int64     `json:"employee_id"`
	ClientID        int64     `json:"client_id"`
	StartTS         time.Time `json:"start_ts"`
	EndTS           time.Time `json:"end_ts"`
	OtherShiftID    int64     `json:"other_shift_id"`
	OtherTemplateID int64     `json:"other_template_id"`
	OtherClientID   int64     `json:"other_client_id"`
	OtherStartTS    time.Time `json:"other_start_ts"`
	OtherEndTS      time.Time `json:"other_end_ts"`
	DetectedAt      time.Time `json:"detected_at"`
}

func runDocument(summary *domain.RunSummary, audits []domain.AuditRow, conflicts []domain.ConflictRow) document {
	doc := document{
		Summary: summaryDoc{
			RunID:            summary.RunID,
			Status:           string(summary.Status),
			StartedAt:        summary.StartedAt,
			CompletedAt:      summary.CompletedAt,
			DurationSec:      summary.DurationSec,
			WeeklyTemplates:  summary.WeeklyTemplates,
			MonthlyTemplates: summary.MonthlyTemplates,
			Created:          summary.Created,
			Duplicates:       summary.Duplicates,
			Overlaps:         summary.Overlaps,
			Errors:           summary.Errors,
			Retracted:        summary.Retracted,
			Error:            summary.Error,
		},
		Audits:    make([]auditDoc, 0, len(audits)),
		Conflicts: make([]conflictDoc, 0, len(conflicts)),
	}
	for _, r := range audits {
		doc.Audits = append(doc.Audits, auditDoc{
			RunDate:    r.RunDate.Format("2006-01-02"),
			TemplateID: r.TemplateID,
			InstanceID: r.ShiftID,
			EmployeeID: r.EmployeeID,
			ClientID:   r.ClientID,
			StartTS:    r.StartAt,
			EndTS:      r.EndAt,
			Outcome:    string(r.Outcome),
			ErrorDesc:  r.ErrorDesc,
			Kind:       r.Kind.String(),
			Pattern:    r.Pattern,
		})
	}
	for _, c := range conflicts {
		doc.Conflicts = append(doc.Conflicts, conflictDoc{
			TemplateID:      c.TemplateID,
			EmployeeID:      c.EmployeeID,
			ClientID:        c.ClientID,
			StartTS:         c.StartAt,
			EndTS:           c.EndAt,
			OtherShiftID:    c.WithShiftID,
			OtherTemplateID: c.WithTemplateID,
			OtherClientID:   c.WithClientID,
			OtherStartTS:    c.WithStartAt,
			OtherEndTS:      c.WithEndAt,
			DetectedAt:      c.DetectedAt,
		})
	}
	return doc
}
