package project

import (
	"fmt"
	"os"
	"path/filepath"
)

// Save writes doc to path atomically: the document is encoded in full,
// written to a temporary file in the same directory, synced and renamed over
// the destination. On any failure the destination is left as it was.
func Save(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return &FileIOError{Op: "write", Path: path, Err: fmt.Errorf("encode: %w", err)}
	}
	data = append(data, '\n')

	if err := writeAtomic(path, data); err != nil {
		return &FileIOError{Op: "write", Path: path, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Load reads and decodes a project file. Read failures are FileIOErrors;
// content that is not a project document is returned as a decode error.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FileIOError{Op: "read", Path: path, Err: err}
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode project %s: %w", path, err)
	}
	return doc, nil
}
