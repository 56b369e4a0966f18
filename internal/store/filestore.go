package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/lourdes7u7/analisisAudio/internal/report"
)

// FileStore keeps one report_<id>.json document per report in a flat
// directory. Writes go through a temp file and rename so a crashed write
// never leaves a truncated document behind.
type FileStore struct {
	dir string
	log *zap.Logger
}

// NewFileStore creates the results directory if needed.
func NewFileStore(dir string, log *zap.Logger) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create results directory: %w", err)
	}
	return &FileStore{dir: dir, log: log}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, "report_"+id+".json")
}

// Create claims the report file with O_EXCL so two concurrent creates for
// the same ID cannot both succeed: exactly one caller wins the path, the
// rest get ErrExists.
func (s *FileStore) Create(ctx context.Context, r *report.Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(s.path(r.ReportDetails.ReportID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("could not create report file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return fmt.Errorf("could not write report: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("could not close report file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (*report.Report, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not read report %s: %w", id, err)
	}
	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("could not decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *FileStore) Save(ctx context.Context, r *report.Report) error {
	return s.write(r)
}

func (s *FileStore) List(ctx context.Context) ([]Summary, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("could not list results directory: %w", err)
	}

	summaries := []Summary{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "report_") || !strings.HasSuffix(name, ".json") {
			continue
		}
		id := strings.TrimSuffix(strings.TrimPrefix(name, "report_"), ".json")
		r, err := s.Get(ctx, id)
		if err != nil {
			// A single unreadable document should not break the listing.
			s.log.Warn("Skipping unreadable report file", zap.String("file", name), zap.Error(err))
			continue
		}
		summaries = append(summaries, Summary{
			ReportID:    id,
			PatientName: r.PatientDetails.PatientFullName,
			Created:     r.ReportDetails.ReportCreated,
			Status:      string(r.ReportDetails.ReportStatus),
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ReportID < summaries[j].ReportID })
	return summaries, nil
}

func (s *FileStore) write(r *report.Report) error {
	data, err := Marshal(r)
	if err != nil {
		return err
	}

	path := s.path(r.ReportDetails.ReportID)
	tmp, err := os.CreateTemp(s.dir, "report_*.tmp")
	if err != nil {
		return fmt.Errorf("could not create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("could not write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("could not replace report file: %w", err)
	}
	return nil
}

// Marshal encodes a report document the way the export format expects:
// two-space indent, HTML escaping off so free-text comments survive verbatim.
func Marshal(r *report.Report) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("could not encode report: %w", err)
	}
	return buf.Bytes(), nil
}
