// Package snapshot reads and writes the flat task table produced by a
// forward sync. The on-disk format is CSV with a header row.
package snapshot

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dbvcapital/statusboard/internal/schema"
	"github.com/natefinch/atomic"
)

// Column names, in output order.
const (
	ColID             = "id"
	ColArea           = "area"
	ColProject        = "project"
	ColTask           = "task"
	ColResponsible    = "responsible"
	ColStart          = "start_date"
	ColEnd            = "end_date"
	ColStatus         = "status"
	ColStatusOriginal = "status_original"
	ColObservation    = "observation"
)

const filePerms = 0o644

// ErrNoRows is returned by Write when there is nothing to write. The
// existing snapshot is left untouched.
var ErrNoRows = errors.New("0 tarefas")

// Options controls the written schema.
type Options struct {
	// IncludeOriginalStatus adds the status_original column after status.
	IncludeOriginalStatus bool
}

// Result describes a successful write.
type Result struct {
	Path    string
	Rows    int
	Message string
}

// Header returns the column list for opts.
func Header(opts Options) []string {
	cols := []string{ColID, ColArea, ColProject, ColTask, ColResponsible, ColStart, ColEnd, ColStatus}
	if opts.IncludeOriginalStatus {
		cols = append(cols, ColStatusOriginal)
	}
	return append(cols, ColObservation)
}

// Write replaces the snapshot at path with rows. The file is written to a
// temporary name and renamed into place, so readers never see a partial
// table and a failed write leaves the previous snapshot intact.
func Write(path string, rows []schema.TaskRow, opts Options) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if err := schema.ValidateRows(rows); err != nil {
		return nil, fmt.Errorf("invalid snapshot: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, rows, opts); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
		}
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Chmod(path, filePerms); err != nil {
		return nil, fmt.Errorf("failed to set snapshot permissions: %w", err)
	}

	return &Result{
		Path:    path,
		Rows:    len(rows),
		Message: fmt.Sprintf("%d tarefas atualizadas.", len(rows)),
	}, nil
}

// Encode writes rows as CSV to w.
func Encode(w io.Writer, rows []schema.TaskRow, opts Options) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header(opts)); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i := range rows {
		r := &rows[i]
		rec := []string{r.ID, r.Area, r.Project, r.Task, r.Responsible, r.Start, r.End, string(r.Status)}
		if opts.IncludeOriginalStatus {
			rec = append(rec, r.StatusOriginal)
		}
		rec = append(rec, r.Observation)
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}

// Read loads the snapshot at path.
func Read(path string) ([]schema.TaskRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	rows, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", path, err)
	}
	return rows, nil
}

// Decode parses a snapshot. Columns are matched by header name, so either
// schema variant is accepted and unknown columns are ignored. Status values
// are canonicalized when recognized and kept verbatim otherwise.
func Decode(r io.Reader) ([]schema.TaskRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		idx[name] = i
	}
	if _, ok := idx[ColID]; !ok {
		return nil, fmt.Errorf("missing %q column", ColID)
	}

	var rows []schema.TaskRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(col string) string {
			if i, ok := idx[col]; ok && i < len(rec) {
				return rec[i]
			}
			return ""
		}

		id := strings.TrimSpace(get(ColID))
		if id == "" {
			continue
		}
		status := schema.Status(strings.TrimSpace(get(ColStatus)))
		if s, ok := schema.ParseStatus(string(status)); ok {
			status = s
		}
		rows = append(rows, schema.TaskRow{
			ID:             id,
			Area:           get(ColArea),
			Project:        get(ColProject),
			Task:           get(ColTask),
			Responsible:    get(ColResponsible),
			Start:          get(ColStart),
			End:            get(ColEnd),
			Status:         status,
			StatusOriginal: get(ColStatusOriginal),
			Observation:    get(ColObservation),
		})
	}
	return rows, nil
}

// Index maps rows by id.
func Index(rows []schema.TaskRow) map[string]schema.TaskRow {
	out := make(map[string]schema.TaskRow, len(rows))
	for _, r := range rows {
		out[r.ID] = r
	}
	return out
}
