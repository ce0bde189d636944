package validation

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	apperrors "maizemap/internal/errors"
)

// Input is a file a run reads, with the extensions its reader accepts
type Input struct {
	Role       string // flag or config name shown in messages, e.g. "boundary"
	Path       string
	Extensions []string
}

// FileValidator checks the files of a run before any of them is parsed
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{logger: logger}
}

// ValidateFile checks that path is a readable regular file
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("file %s does not exist", path)
	case err != nil:
		return fmt.Errorf("stat %s: %w", path, err)
	case info.IsDir():
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	return f.Close()
}

// ValidateInput checks a file and that its extension is one of exts.
// Office lock files (~$name.xlsx) are rejected.
func (v *FileValidator) ValidateInput(path string, exts ...string) error {
	if err := v.ValidateFile(path); err != nil {
		return err
	}
	if strings.HasPrefix(filepath.Base(path), "~$") {
		return fmt.Errorf("file %s is a temporary office file", path)
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == e {
			return nil
		}
	}
	return fmt.Errorf("file %s has extension %q, want one of %s", path, ext, strings.Join(exts, ", "))
}

// ValidateInputs checks every input and reports all failures in one
// Validation error naming the offending roles.
func (v *FileValidator) ValidateInputs(inputs ...Input) error {
	var msgs, roles []string
	for _, in := range inputs {
		if err := v.ValidateInput(in.Path, in.Extensions...); err != nil {
			msgs = append(msgs, in.Role+": "+err.Error())
			roles = append(roles, in.Role)
			continue
		}
		v.logger.Debug("input validated", slog.String("role", in.Role), slog.String("file", in.Path))
	}
	if len(msgs) == 0 {
		return nil
	}
	v.logger.Error("run inputs rejected", slog.Any("roles", roles))
	return apperrors.Validation("%s", strings.Join(msgs, "; ")).With("inputs", roles)
}

// ValidateOutputDirectory creates dir if needed and probes that it is writable
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output directory %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
