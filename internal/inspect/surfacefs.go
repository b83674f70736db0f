// Package inspect exposes live surfaces to external tooling: a read-only
// billy filesystem (served over NFS) and a set of MCP tools.
//
// Filesystem layout:
//
//	/_surfaces.json                 running surfaces and their revision
//	/<surface>/_revision.json       metadata of the current revision
//	/<surface>/{kind,props.json,state.json}
//	/<surface>/<tag>/.../<tag>/     one directory per node, same files
//
// Every lookup reads the surface's current revision at that moment, so a
// directory listing and a later read may observe different revisions.
package inspect

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/helper/chroot"

	"github.com/agentic-research/revtree/internal/graph"
)

var errReadOnly = errors.New("read-only filesystem")

const (
	surfacesFile = "_surfaces.json"
	revisionFile = "_revision.json"
	kindFile     = "kind"
	propsFile    = "props.json"
	stateFile    = "state.json"
)

// Source is the view of a process's surfaces the inspector reads from.
// surface.Manager implements it.
type Source interface {
	Surfaces() []graph.SurfaceID
	CurrentRevision(id graph.SurfaceID) (graph.Revision, bool)
	FindNodeByTag(tag graph.Tag) (*graph.Node, graph.Revision, bool)
}

// SurfaceFS adapts a Source to billy.Filesystem.
type SurfaceFS struct {
	src       Source
	mountTime time.Time
}

// NewSurfaceFS creates a read-only filesystem over src.
func NewSurfaceFS(src Source) *SurfaceFS {
	return &SurfaceFS{src: src, mountTime: time.Now()}
}

// entry is a resolved path: a directory (root, or a node) or a file.
type entry struct {
	name string
	dir  bool
	data []byte
	node *graph.Node
	rev  graph.Revision
	// surfaceDir is set for /<surface>, which also holds _revision.json.
	surfaceDir bool
}

func (e *entry) info(mountTime time.Time) os.FileInfo {
	mod := mountTime
	if !e.rev.IsZero() {
		mod = e.rev.Meta.CommittedAt
	}
	if e.dir {
		return &staticFileInfo{name: e.name, mode: os.ModeDir | 0o555, modTime: mod}
	}
	return &staticFileInfo{name: e.name, size: int64(len(e.data)), mode: 0o444, modTime: mod}
}

// RevisionInfo is the content of _revision.json.
type RevisionInfo struct {
	Surface     int32     `json:"surface"`
	Number      uint64    `json:"number"`
	CommitID    string    `json:"commit_id"`
	Source      string    `json:"source"`
	CommittedAt time.Time `json:"committed_at"`
	NodeCount   int       `json:"node_count"`
}

func revisionInfo(rev graph.Revision) RevisionInfo {
	return RevisionInfo{
		Surface:     int32(rev.Surface()),
		Number:      rev.Number,
		CommitID:    rev.Meta.ID.String(),
		Source:      rev.Meta.Source.String(),
		CommittedAt: rev.Meta.CommittedAt,
		NodeCount:   rev.NodeCount(),
	}
}

func marshal(v any) []byte {
	b, _ := json.MarshalIndent(v, "", "  ")
	return append(b, '\n')
}

func (fs *SurfaceFS) surfacesJSON() []byte {
	infos := make([]RevisionInfo, 0)
	for _, id := range fs.src.Surfaces() {
		if rev, ok := fs.src.CurrentRevision(id); ok {
			infos = append(infos, revisionInfo(rev))
		}
	}
	return marshal(infos)
}

// nodeFile returns the content of one of a node directory's files.
func nodeFile(name string, n *graph.Node, rev graph.Revision, surfaceDir bool) ([]byte, bool) {
	switch name {
	case kindFile:
		return []byte(n.Kind().String() + "\n"), true
	case propsFile:
		return blobFile(n.Props().Bytes()), true
	case stateFile:
		return blobFile(n.State().Bytes()), true
	case revisionFile:
		if surfaceDir {
			return marshal(revisionInfo(rev)), true
		}
	}
	return nil, false
}

func blobFile(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append(b, '\n')
}

func childByTag(n *graph.Node, tag graph.Tag) (*graph.Node, bool) {
	for _, c := range n.Children() {
		if c.Tag() == tag {
			return c, true
		}
	}
	return nil, false
}

func parseID(s string) (int32, bool) {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return int32(v), true
}

func (fs *SurfaceFS) resolve(path string) (*entry, error) {
	path = cleanPath(path)
	if path == "/" {
		return &entry{name: "/", dir: true}, nil
	}
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) == 1 && parts[0] == surfacesFile {
		return &entry{name: surfacesFile, data: fs.surfacesJSON()}, nil
	}

	id, ok := parseID(parts[0])
	if !ok {
		return nil, os.ErrNotExist
	}
	rev, ok := fs.src.CurrentRevision(graph.SurfaceID(id))
	if !ok {
		return nil, os.ErrNotExist
	}

	n := rev.Root
	for i, part := range parts[1:] {
		if i == len(parts)-2 {
			if data, ok := nodeFile(part, n, rev, i == 0); ok {
				return &entry{name: part, data: data, node: n, rev: rev}, nil
			}
		}
		tag, ok := parseID(part)
		if !ok {
			return nil, os.ErrNotExist
		}
		if n, ok = childByTag(n, graph.Tag(tag)); !ok {
			return nil, os.ErrNotExist
		}
	}
	return &entry{name: parts[len(parts)-1], dir: true, node: n, rev: rev, surfaceDir: len(parts) == 1}, nil
}

// --- billy.Basic ---

func (fs *SurfaceFS) Create(string) (billy.File, error) { return nil, errReadOnly }

func (fs *SurfaceFS) Open(filename string) (billy.File, error) {
	return fs.OpenFile(filename, os.O_RDONLY, 0)
}

func (fs *SurfaceFS) OpenFile(filename string, flag int, _ os.FileMode) (billy.File, error) {
	if flag&(os.O_WRONLY|os.O_RDWR|os.O_CREATE|os.O_TRUNC|os.O_APPEND) != 0 {
		return nil, errReadOnly
	}
	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: filename, Err: err}
	}
	if e.dir {
		return nil, &os.PathError{Op: "open", Path: filename, Err: fmt.Errorf("is a directory")}
	}
	return newSnapshotFile(e.name, e.data), nil
}

func (fs *SurfaceFS) Stat(filename string) (os.FileInfo, error) { return fs.Lstat(filename) }

func (fs *SurfaceFS) Rename(string, string) error { return errReadOnly }
func (fs *SurfaceFS) Remove(string) error         { return errReadOnly }

func (fs *SurfaceFS) Join(elem ...string) string { return filepath.Join(elem...) }

// --- billy.TempFile ---

func (fs *SurfaceFS) TempFile(string, string) (billy.File, error) {
	return nil, billy.ErrNotSupported
}

// --- billy.Dir ---

func (fs *SurfaceFS) ReadDir(path string) ([]os.FileInfo, error) {
	e, err := fs.resolve(path)
	if err != nil {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: err}
	}
	if !e.dir {
		return nil, &os.PathError{Op: "readdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	if e.node == nil {
		infos := []os.FileInfo{(&entry{name: surfacesFile, data: fs.surfacesJSON()}).info(fs.mountTime)}
		for _, id := range fs.src.Surfaces() {
			rev, ok := fs.src.CurrentRevision(id)
			if !ok {
				continue
			}
			infos = append(infos, (&entry{name: id.String(), dir: true, rev: rev}).info(fs.mountTime))
		}
		return infos, nil
	}

	names := []string{kindFile, propsFile, stateFile}
	if e.surfaceDir {
		names = append(names, revisionFile)
	}
	infos := make([]os.FileInfo, 0, len(names)+e.node.NumChildren())
	for _, name := range names {
		data, _ := nodeFile(name, e.node, e.rev, e.surfaceDir)
		infos = append(infos, (&entry{name: name, data: data, rev: e.rev}).info(fs.mountTime))
	}
	for _, c := range e.node.Children() {
		infos = append(infos, (&entry{name: c.Tag().String(), dir: true, rev: e.rev}).info(fs.mountTime))
	}
	return infos, nil
}

func (fs *SurfaceFS) MkdirAll(string, os.FileMode) error { return errReadOnly }

// --- billy.Symlink ---

func (fs *SurfaceFS) Lstat(filename string) (os.FileInfo, error) {
	e, err := fs.resolve(filename)
	if err != nil {
		return nil, &os.PathError{Op: "lstat", Path: filename, Err: err}
	}
	return e.info(fs.mountTime), nil
}

func (fs *SurfaceFS) Symlink(string, string) error { return billy.ErrNotSupported }

func (fs *SurfaceFS) Readlink(string) (string, error) { return "", billy.ErrNotSupported }

// --- billy.Chroot ---

func (fs *SurfaceFS) Chroot(path string) (billy.Filesystem, error) {
	return chroot.New(fs, path), nil
}

func (fs *SurfaceFS) Root() string { return "/" }

// --- billy.Capable ---

func (fs *SurfaceFS) Capabilities() billy.Capability {
	return billy.ReadCapability | billy.SeekCapability
}

func cleanPath(path string) string {
	path = filepath.Clean("/" + path)
	if path == "." {
		return "/"
	}
	return path
}

type staticFileInfo struct {
	name    string
	size    int64
	mode    os.FileMode
	modTime time.Time
}

func (fi *staticFileInfo) Name() string       { return fi.name }
func (fi *staticFileInfo) Size() int64        { return fi.size }
func (fi *staticFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *staticFileInfo) ModTime() time.Time { return fi.modTime }
func (fi *staticFileInfo) IsDir() bool        { return fi.mode.IsDir() }
func (fi *staticFileInfo) Sys() any           { return nil }

var (
	_ billy.Filesystem = (*SurfaceFS)(nil)
	_ billy.Capable    = (*SurfaceFS)(nil)
)
