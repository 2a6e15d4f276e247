package scraper

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
)

// profileLocks serializes sessions sharing a browser profile directory.
// Chromium refuses a second process on the same profile, and two requests
// for one user would otherwise race on its cookies.
type profileLocks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

var profiles = &profileLocks{slots: make(map[string]chan struct{})}

// acquire blocks until the profile for key is free or ctx is done.
func (p *profileLocks) acquire(ctx context.Context, key string) (func(), error) {
	p.mu.Lock()
	slot, ok := p.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		p.slots[key] = slot
	}
	p.mu.Unlock()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() { once.Do(func() { <-slot }) }, nil
}

// ProfileDir is the persistent browser profile for username under dataDir.
func ProfileDir(dataDir, username string) string {
	return filepath.Join(dataDir, profileName(username))
}

func profileName(username string) string {
	name := strings.TrimSpace(username)
	name = strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(name)
	if name == "" || name == "." || name == ".." {
		name = "_" + name
	}
	return name
}
