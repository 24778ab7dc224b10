package metadata

import (
	"encoding/binary"
	"io/fs"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/text/cases"
)

// FoldName returns the case-folded form of name used to order siblings.
func FoldName(name string) string {
	return cases.Fold().String(strings.ToValidUTF8(name, "\uFFFD"))
}

// Record describes one filesystem entry. Records are shared between every
// holder of the same path and must be released when no longer needed.
type Record struct {
	path        string
	name        string
	displayName string
	sortKey     string
	isDir       bool
	mode        fs.FileMode
	size        int64
	modTime     time.Time
	fingerprint uint64

	owner *Provider
	refs  int // guarded by owner.mu
}

func newRecord(path, name string, info fs.FileInfo) *Record {
	display := strings.ToValidUTF8(name, "\uFFFD")
	r := &Record{
		path:        path,
		name:        name,
		displayName: display,
		sortKey:     FoldName(name),
		isDir:       info.IsDir(),
		mode:        info.Mode(),
		size:        info.Size(),
		modTime:     info.ModTime(),
	}
	r.fingerprint = fingerprint(name, info)
	return r
}

// fingerprint hashes the attributes that make two stats of the same path
// interchangeable.
func fingerprint(name string, info fs.FileInfo) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(name)
	var buf [20]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(info.Mode()))
	binary.LittleEndian.PutUint64(buf[4:12], uint64(info.Size()))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(info.ModTime().UnixNano()))
	_, _ = h.Write(buf[:])
	return h.Sum64()
}

// Path returns the absolute path the record was loaded from.
func (r *Record) Path() string { return r.path }

// Name returns the base name exactly as it appears on disk.
func (r *Record) Name() string { return r.name }

// DisplayName returns the base name converted to valid UTF-8.
func (r *Record) DisplayName() string { return r.displayName }

// SortKey returns the case-folded display name used for ordering siblings.
func (r *Record) SortKey() string { return r.sortKey }

// IsDir reports whether the entry is a directory (symlinks are followed).
func (r *Record) IsDir() bool { return r.isDir }

func (r *Record) Mode() fs.FileMode { return r.mode }
func (r *Record) Size() int64 { return r.size }
func (r *Record) ModTime() time.Time { return r.modTime }
func (r *Record) Fingerprint() uint64 { return r.fingerprint }

// Retain adds a reference.
func (r *Record) Retain() *Record {
	if r == nil || r.owner == nil {
		return r
	}
	r.owner.mu.Lock()
	r.refs++
	r.owner.mu.Unlock()
	return r
}

// Release drops a reference. The owning provider forgets the record once the
// last reference is gone.
func (r *Record) Release() {
	if r == nil || r.owner == nil {
		return
	}
	r.owner.release(r)
}

// Refs returns the current reference count.
func (r *Record) Refs() int {
	if r == nil || r.owner == nil {
		return 0
	}
	r.owner.mu.Lock()
	defer r.owner.mu.Unlock()
	return r.refs
}
