package state

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ShayCichocki/digestflow/pkg/models"
)

// FileDigest returns the hex SHA-256 of the file at path.
func FileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TaskHash derives the cache key of a task from its kind, version, command,
// output path, sorted params, and the content of every input file.
func TaskHash(t *models.Task) (string, error) {
	h := sha256.New()
	fmt.Fprintf(h, "kind=%s\nversion=%d\ncommand=%s\noutput=%s\n", t.Kind, t.Version, t.Command, t.Output)
	for _, k := range t.ParamKeys() {
		fmt.Fprintf(h, "param %s=%s\n", k, t.Params[k])
	}
	for _, in := range t.Inputs {
		d, err := FileDigest(in)
		if err != nil {
			return "", fmt.Errorf("hash input %s: %w", in, err)
		}
		fmt.Fprintf(h, "input %s\n", d)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CachedResult returns the record for hash when its result can be reused:
// the task finished successfully and its output still exists unchanged.
// Returns nil, nil otherwise.
func (db *DB) CachedResult(hash string) (*TaskRun, error) {
	tr, err := db.GetTaskRun(hash)
	if err != nil || tr == nil {
		return nil, err
	}
	if tr.Status != TaskRunDone {
		return nil, nil
	}
	digest, err := FileDigest(tr.Output)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if digest != tr.OutputDigest {
		return nil, nil
	}
	return tr, nil
}
