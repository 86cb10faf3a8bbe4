package collector

import (
	"sort"
	"sync"
	"time"
)

// device is the collector's view of one node.
type device struct {
	frame      []byte
	updated    time.Time
	registered bool
	kind       string
	// changed is closed and replaced each time a frame arrives.
	changed chan struct{}
}

// Store keeps the latest frame of every device in memory.
type Store struct {
	mu      sync.Mutex
	devices map[string]*device
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{devices: make(map[string]*device), now: time.Now}
}

func (s *Store) get(id string) *device {
	d, ok := s.devices[id]
	if !ok {
		d = &device{changed: make(chan struct{})}
		s.devices[id] = d
	}
	return d
}

// Register records a device announcement.
func (s *Store) Register(id, kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.get(id)
	d.registered = true
	d.kind = kind
}

// Put replaces the latest frame of a device and wakes its viewers.
func (s *Store) Put(id string, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.get(id)
	d.frame = frame
	d.updated = s.now()
	close(d.changed)
	d.changed = make(chan struct{})
}

// Latest returns the device's latest frame (nil if none) and a channel
// that is closed when a newer one arrives.
func (s *Store) Latest(id string) ([]byte, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.get(id)
	return d.frame, d.changed
}

// Devices returns the sorted ids of devices that have sent a frame.
func (s *Store) Devices() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.devices))
	for id, d := range s.devices {
		if d.frame != nil {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Registered reports whether the device has announced itself.
func (s *Store) Registered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	return ok && d.registered
}
