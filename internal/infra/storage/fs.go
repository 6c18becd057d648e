// Package storage lays out per-job directories on the local filesystem:
// <data_dir>/<job_id>/in for the upload, tmp for converter output and out
// for the generated workbook.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const OutputName = "BOQ_Output.xlsx"

type JobStore struct {
	dataDir string
}

func NewJobStore(dataDir string) (*JobStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JobStore{dataDir: dataDir}, nil
}

func (s *JobStore) jobRoot(jobID string) string {
	return filepath.Join(s.dataDir, jobID)
}

func (s *JobStore) InDir(jobID string) string  { return filepath.Join(s.jobRoot(jobID), "in") }
func (s *JobStore) TmpDir(jobID string) string { return filepath.Join(s.jobRoot(jobID), "tmp") }
func (s *JobStore) OutDir(jobID string) string { return filepath.Join(s.jobRoot(jobID), "out") }

// SaveUpload streams the uploaded drawing into the job's in directory and
// returns the stored path and byte count. The client-supplied filename is
// reduced to its base name so it cannot escape the job directory.
func (s *JobStore) SaveUpload(jobID, filename string, r io.Reader) (string, int64, error) {
	name := filepath.Base(strings.TrimSpace(filename))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", 0, fmt.Errorf("invalid upload filename %q", filename)
	}
	dir := s.InDir(jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create job dir: %w", err)
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", 0, fmt.Errorf("write upload: %w", err)
	}
	return path, n, nil
}

// PrepareWorkDirs creates the tmp and out directories for a job run.
func (s *JobStore) PrepareWorkDirs(jobID string) error {
	for _, dir := range []string{s.TmpDir(jobID), s.OutDir(jobID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// WriteOutput stores the generated workbook and returns its path.
func (s *JobStore) WriteOutput(jobID string, data []byte) (string, error) {
	if err := os.MkdirAll(s.OutDir(jobID), 0o755); err != nil {
		return "", fmt.Errorf("create out dir: %w", err)
	}
	path := filepath.Join(s.OutDir(jobID), OutputName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write output: %w", err)
	}
	return path, nil
}

// OutputPath returns the workbook path if it exists.
func (s *JobStore) OutputPath(jobID string) (string, error) {
	path := filepath.Join(s.OutDir(jobID), OutputName)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// CleanupTmp removes converter scratch space after a successful run.
func (s *JobStore) CleanupTmp(jobID string) error {
	return os.RemoveAll(s.TmpDir(jobID))
}
