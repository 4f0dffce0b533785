package store

import (
	"crypto/md5"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v4"
	"gitlab.com/trawler/trawl"
)

// Layout of a scan session on disk. Every (url, scope) pair gets its own
// directory so scans of different targets never share state.
type Layout struct {
	Dir string
}

// NewLayout for a target under dataPath
func NewLayout(dataPath string, root *trawl.Request, scope trawl.ScopePolicy) *Layout {
	sum := md5.Sum([]byte(root.URL))
	name := root.Hostname() + "_" + string(scope) + "_" + hex.EncodeToString(sum[:])[:8]
	return &Layout{Dir: filepath.Join(dataPath, name)}
}

// DBPath of the badger store
func (l *Layout) DBPath() string {
	return filepath.Join(l.Dir, "db")
}

// GraphPath of the link graph
func (l *Layout) GraphPath() string {
	return filepath.Join(l.Dir, "graph")
}

// CheckpointPath of the explorer state
func (l *Layout) CheckpointPath() string {
	return filepath.Join(l.Dir, "explorer.state")
}

// SaveCheckpoint msgpack encodes v to path, replacing any previous
// checkpoint only once the new one is fully written
func SaveCheckpoint(path string, v interface{}) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encoding checkpoint")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errors.Wrap(err, "writing checkpoint")
	}
	return errors.Wrap(os.Rename(tmp, path), "replacing checkpoint")
}

// LoadCheckpoint decodes path into v, trawl.ErrNotFound if there is none
func LoadCheckpoint(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return trawl.ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "reading checkpoint")
	}
	return errors.Wrap(msgpack.Unmarshal(data, v), "decoding checkpoint")
}

// RemoveCheckpoint forgets the explorer state
func RemoveCheckpoint(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
