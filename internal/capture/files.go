package capture

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/nerrad567/lightspeed-asi/internal/camera"
)

const (
	dirPermissions  = 0755
	filePermissions = 0644
)

// ErrInvalidName is returned for artifact names that are empty or contain a
// path separator.
var ErrInvalidName = errors.New("capture: invalid artifact name")

// FileWriter writes artifacts into Dir. A file appears under its final
// name only once fully written, and an existing file is never replaced.
type FileWriter struct {
	Dir string
}

// WriteArtifact writes data to Dir/name and returns the path. If name is
// taken the error wraps camera.ErrArtifactExists.
func (w FileWriter) WriteArtifact(name string, data []byte) (string, error) {
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	dir := w.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return "", fmt.Errorf("capture: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+name+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("capture: creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()        //nolint:errcheck // already failing
		os.Remove(tmpName) //nolint:errcheck // already failing
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return "", fmt.Errorf("capture: writing %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", fmt.Errorf("capture: syncing %s: %w", name, err)
	}
	if err := tmp.Chmod(filePermissions); err != nil {
		cleanup()
		return "", fmt.Errorf("capture: chmod %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName) //nolint:errcheck // already failing
		return "", fmt.Errorf("capture: closing %s: %w", name, err)
	}

	path := filepath.Join(dir, name)
	err = publish(tmpName, path)
	os.Remove(tmpName) //nolint:errcheck // link or rename already placed it
	if errors.Is(err, fs.ErrExist) {
		return "", fmt.Errorf("%w: %s", camera.ErrArtifactExists, path)
	}
	if err != nil {
		return "", fmt.Errorf("capture: publishing %s: %w", name, err)
	}
	return path, nil
}

// publish moves tmp to path unless path exists. Filesystems without hard
// links fall back to check then rename.
func publish(tmp, path string) error {
	err := os.Link(tmp, path)
	if err == nil || errors.Is(err, fs.ErrExist) {
		return err
	}
	if _, statErr := os.Lstat(path); statErr == nil {
		return fs.ErrExist
	}
	return os.Rename(tmp, path)
}
