package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/jerkytreats/cdnhealth/internal/logging"
	"github.com/jerkytreats/cdnhealth/internal/persistence"
)

const (
	ReportSaveKey = "report.save"

	reportFilePrefix    = "resource-test-report-"
	reportFileTimestamp = "2006-01-02T15-04-05.000Z"
)

// Environment describes the configuration a report was produced under.
type Environment struct {
	APIBaseURL    string `json:"apiBaseUrl"`
	CDNBaseURL    string `json:"cdnBaseUrl,omitempty"`
	Timeout       string `json:"timeout"`
	Concurrency   int    `json:"concurrency"`
	CDNResolution string `json:"cdnResolution,omitempty"`
}

// SavedReport is the persisted JSON document.
type SavedReport struct {
	RunID       string      `json:"runId"`
	GeneratedAt time.Time   `json:"generatedAt"`
	Environment Environment `json:"environment"`
	*HealthReport
}

// Writer persists reports as timestamped JSON files and mirrors the latest
// one through a backed-up FileStorage.
type Writer struct {
	dir    string
	latest *persistence.FileStorage
	now    func() time.Time
	newID  func() string
}

// NewWriter creates a writer for dir. latest may be nil to skip mirroring.
func NewWriter(dir string, latest *persistence.FileStorage) *Writer {
	return &Writer{
		dir:    dir,
		latest: latest,
		now:    time.Now,
		newID:  func() string { return uuid.New().String() },
	}
}

// Wrap stamps r with a run id, timestamp and environment.
func (w *Writer) Wrap(r *HealthReport, env Environment) *SavedReport {
	return &SavedReport{
		RunID:        w.newID(),
		GeneratedAt:  w.now().UTC(),
		Environment:  env,
		HealthReport: r,
	}
}

// Save writes the report and returns its path.
func (w *Writer) Save(r *HealthReport, env Environment) (string, *SavedReport, error) {
	saved := w.Wrap(r, env)

	data, err := json.MarshalIndent(saved, "", "  ")
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", nil, fmt.Errorf("failed to create report directory: %w", err)
	}

	name := reportFilePrefix + saved.GeneratedAt.Format(reportFileTimestamp) + ".json"
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", nil, fmt.Errorf("failed to write report: %w", err)
	}

	if w.latest != nil {
		if err := w.latest.Write(data); err != nil {
			logging.Warn("Failed to update latest report: %v", err)
		}
	}

	logging.Info("Report %s saved to %s", saved.RunID, path)
	return path, saved, nil
}
