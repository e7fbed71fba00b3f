package registry

import (
	"io"
	"os"
	"path/filepath"
)

// atomicWriteFile writes data to a temporary file in the target's directory
// and renames it over the target after an fsync. A crash at any point leaves
// either the old snapshot or the new one on disk, never a mix.
func atomicWriteFile(filename string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(filename), ".tmp-"+filepath.Base(filename))
	if err != nil {
		return err
	}
	tmpName := f.Name()

	defer func() {
		f.Close()
		os.Remove(tmpName)
	}()

	if err := f.Chmod(perm); err != nil {
		return err
	}

	n, err := f.Write(data)
	if err == nil && n < len(data) {
		return io.ErrShortWrite
	}
	if err != nil {
		return err
	}

	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmpName, filename)
}
