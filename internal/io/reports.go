package io

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"sales-import/internal/logging"
	"sales-import/internal/sales"
)

// ReportStore persists the per-run artifacts of an import: the validation
// error report, the bulk error report, and the archived source file.
type ReportStore interface {
	// WriteValidationReport writes rejected records (original fields in
	// schema order plus a trailing error_reason column) and returns the
	// file path. Callers only invoke it when rejected is non-empty.
	WriteValidationReport(importID string, rejected []sales.RejectedRecord) (string, error)

	// WriteBulkReport writes the remote failure report verbatim and returns
	// the file path.
	WriteBulkReport(importID string, content []byte) (string, error)

	// ArchiveSource copies the processed source file into the archive
	// directory and returns the archived path.
	ArchiveSource(importID, sourcePath string) (string, error)
}

// Workspace is the on-disk ReportStore. Reports land in a per-day work
// directory, archives in a per-month archive directory, both under the
// configured base.
type Workspace struct {
	baseDir string
	now     func() time.Time
}

// NewWorkspace creates a Workspace rooted at baseDir.
func NewWorkspace(baseDir string) *Workspace {
	return &Workspace{baseDir: baseDir, now: time.Now}
}

// workDir returns (creating if needed) the dated work directory for reports.
func (w *Workspace) workDir() (string, error) {
	dir := filepath.Join(w.baseDir, "imports", "sales", w.now().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create work directory '%s': %w", dir, err)
	}
	return dir, nil
}

// WriteValidationReport writes the rejected rows as CSV: the 15 schema
// columns in file order, then error_reason.
func (w *Workspace) WriteValidationReport(importID string, rejected []sales.RejectedRecord) (string, error) {
	dir, err := w.workDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("VALIDATION_ERRORS_%s.csv", importID))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create validation report '%s': %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	header := append(sales.FieldNames(), "error_reason")
	if err := writer.Write(header); err != nil {
		return "", fmt.Errorf("failed to write validation report header to '%s': %w", path, err)
	}

	fields := sales.FieldNames()
	for _, rec := range rejected {
		row := make([]string, 0, len(fields)+1)
		for _, name := range fields {
			row = append(row, rec.Raw.Get(name))
		}
		row = append(row, rec.Reason())
		if err := writer.Write(row); err != nil {
			return "", fmt.Errorf("failed to write validation report row to '%s': %w", path, err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("failed to flush validation report '%s': %w", path, err)
	}

	logging.Logf(logging.Info, "Validation errors exported: %s (%d rows)", path, len(rejected))
	return path, nil
}

// WriteBulkReport writes the remote failure report verbatim.
func (w *Workspace) WriteBulkReport(importID string, content []byte) (string, error) {
	dir, err := w.workDir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("SALESFORCE_ERRORS_%s.csv", importID))

	if err := os.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("failed to write bulk error report '%s': %w", path, err)
	}

	logging.Logf(logging.Info, "Salesforce errors exported: %s (%d bytes)", path, len(content))
	return path, nil
}

// ArchiveSource copies the source file into the per-month archive directory,
// prefixing the file name with the import id.
func (w *Workspace) ArchiveSource(importID, sourcePath string) (string, error) {
	dir := filepath.Join(w.baseDir, "imports", "sales", "archive", w.now().Format("2006-01"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory '%s': %w", dir, err)
	}

	archivePath := filepath.Join(dir, fmt.Sprintf("%s_%s", importID, filepath.Base(sourcePath)))

	src, err := os.Open(sourcePath)
	if err != nil {
		return "", fmt.Errorf("failed to open source file '%s' for archiving: %w", sourcePath, err)
	}
	defer src.Close()

	dst, err := os.Create(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file '%s': %w", archivePath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy source file to '%s': %w", archivePath, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive file '%s': %w", archivePath, err)
	}

	logging.Logf(logging.Info, "Source file archived: %s", archivePath)
	return archivePath, nil
}
