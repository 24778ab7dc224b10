package metadata

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrEmptyName is returned by Load when no entry name is given.
var ErrEmptyName = errors.New("metadata: empty name")

// Provider loads Records and shares them by path. A cached record is handed
// out again only while a fresh stat yields the same fingerprint; otherwise a
// new record replaces it in the cache and holders of the old one keep it
// until they release it.
type Provider struct {
	mu      sync.Mutex
	entries map[string]*Record

	stat  func(string) (fs.FileInfo, error)
	lstat func(string) (fs.FileInfo, error)
}

// NewProvider creates a provider backed by the local filesystem.
func NewProvider() *Provider {
	return &Provider{
		entries: make(map[string]*Record),
		stat:    os.Stat,
		lstat:   os.Lstat,
	}
}

// Load returns a retained record for name inside dir. When dir is empty,
// name is taken as a full path and becomes the record's name unchanged.
// Symlinks are followed; a dangling link falls back to the link itself.
func (p *Provider) Load(dir, name string) (*Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	path := name
	if dir != "" {
		path = filepath.Join(dir, name)
	}

	info, err := p.stat(path)
	if err != nil {
		info, err = p.lstat(path)
		if err != nil {
			return nil, fmt.Errorf("metadata: load %s: %w", path, err)
		}
	}
	fp := fingerprint(name, info)

	p.mu.Lock()
	defer p.mu.Unlock()

	if r, ok := p.entries[path]; ok && r.fingerprint == fp && r.name == name {
		r.refs++
		return r, nil
	}

	r := newRecord(path, name, info)
	r.owner = p
	r.refs = 1
	p.entries[path] = r
	return r, nil
}

// Len returns the number of records currently cached.
func (p *Provider) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *Provider) release(r *Record) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if r.refs <= 0 {
		return
	}
	r.refs--
	if r.refs == 0 && p.entries[r.path] == r {
		delete(p.entries, r.path)
	}
}
