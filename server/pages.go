package server

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Pages loads response bodies from a directory and keeps them in memory.
// Workers that ask for the same page before it is cached share one read.
type Pages struct {
	dir string
	sf  singleflight.Group

	mu    sync.RWMutex
	cache map[string][]byte
}

// NewPages returns a Pages serving files from dir.
func NewPages(dir string) *Pages {
	return &Pages{dir: dir, cache: make(map[string][]byte)}
}

// Load returns the contents of name.  Only the base name is used, so a page
// can never be read from outside dir.
func (p *Pages) Load(name string) ([]byte, error) {
	name = filepath.Base(name)

	p.mu.RLock()
	body, ok := p.cache[name]
	p.mu.RUnlock()
	if ok {
		return body, nil
	}

	v, err, _ := p.sf.Do(name, func() (interface{}, error) {
		b, err := os.ReadFile(filepath.Join(p.dir, name)) // #nosec G304 – base name inside the configured dir
		if err != nil {
			return nil, fmt.Errorf("server: load page %q: %w", name, err)
		}
		p.mu.Lock()
		p.cache[name] = b
		p.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}
