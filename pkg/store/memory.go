package store

import (
	"context"
	"sync"
	"time"

	"github.com/depreview/depreview/pkg/manifest"
	"github.com/depreview/depreview/pkg/registry"
)

// MemoryStore keeps everything in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   uint64
	lists    map[uint64]*List
	packages map[registry.Identity]*Package
	now      func() time.Time
}

// NewMemoryStore creates an empty store. List ids start at 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		lists:    make(map[uint64]*List),
		packages: make(map[registry.Identity]*Package),
		now:      time.Now,
	}
}

func (s *MemoryStore) CreateList(ctx context.Context, reg string, format manifest.Format, entries []manifest.Entry) (*List, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l := &List{
		ID:        s.nextID,
		CreatedAt: s.now().UTC(),
		Registry:  reg,
		Format:    format,
		Entries:   append([]manifest.Entry(nil), entries...),
	}
	s.lists[l.ID] = l
	s.nextID++
	return copyList(l), nil
}

func (s *MemoryStore) GetList(ctx context.Context, id uint64) (*List, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.lists[id]
	if !ok {
		return nil, listNotFound(id)
	}
	return copyList(l), nil
}

func (s *MemoryStore) GetPackage(ctx context.Context, id registry.Identity) (*Package, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.packages[id]
	if !ok {
		return nil, packageNotFound(id)
	}
	return copyPackage(p), nil
}

func (s *MemoryStore) PutPackage(ctx context.Context, p *Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := copyPackage(p)
	if old, ok := s.packages[p.Identity]; ok {
		stored.Versions = MergeVersions(old.Versions, p.Versions)
	}
	s.packages[p.Identity] = stored
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func copyList(l *List) *List {
	c := *l
	c.Entries = append([]manifest.Entry(nil), l.Entries...)
	return &c
}

func copyPackage(p *Package) *Package {
	c := *p
	c.Versions = MergeVersions(nil, p.Versions)
	return &c
}

var _ Store = (*MemoryStore)(nil)

// MemoryLocker is a table of per-key mutexes. Keys with no holders or
// waiters are dropped from the table.
type MemoryLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewMemoryLocker creates an empty lock table.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: make(map[string]*keyLock)}
}

func (l *MemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[key]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[key] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, k)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.release(key, k)
		})
	}, nil
}

func (l *MemoryLocker) release(key string, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, key)
	}
}

var _ Locker = (*MemoryLocker)(nil)
