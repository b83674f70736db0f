package inspect

import (
	"bytes"

	billy "github.com/go-git/go-billy/v5"
)

// snapshotFile is a billy.File over content rendered when it was opened.
type snapshotFile struct {
	*bytes.Reader
	name string
}

func newSnapshotFile(name string, data []byte) *snapshotFile {
	return &snapshotFile{Reader: bytes.NewReader(data), name: name}
}

func (f *snapshotFile) Name() string              { return f.name }
func (f *snapshotFile) Write([]byte) (int, error) { return 0, errReadOnly }
func (f *snapshotFile) Truncate(int64) error      { return errReadOnly }
func (f *snapshotFile) Lock() error               { return nil }
func (f *snapshotFile) Unlock() error             { return nil }
func (f *snapshotFile) Close() error              { return nil }

var _ billy.File = (*snapshotFile)(nil)
