package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
)

// DefaultTTL is the idle time after which an untouched session is evicted.
const DefaultTTL = 30 * time.Minute

// Store holds independent sessions keyed by id. Reads refresh a session's
// idle timer. Update serializes transitions so concurrent callers never
// lose each other's writes.
type Store struct {
	cache *ttlcache.Cache[string, State]
	log   *logrus.Logger
	mu    sync.Mutex
	stop  func()
}

// NewStore starts a store whose sessions expire after ttl of inactivity.
// A ttl <= 0 selects DefaultTTL. Close releases the expiry goroutine.
func NewStore(ttl time.Duration, log *logrus.Logger) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.New()
	}
	c := ttlcache.New[string, State](ttlcache.WithTTL[string, State](ttl))
	s := &Store{cache: c, log: log}
	s.stop = c.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, it *ttlcache.Item[string, State]) {
		if reason != ttlcache.EvictionReasonExpired {
			return
		}
		s.log.WithFields(logrus.Fields{
			"session": it.Key(),
			"source":  it.Value().Source,
			"version": it.Value().Version,
		}).Info("session expired")
	})
	go c.Start()
	return s
}

// Create registers a new empty session with a fresh id.
func (s *Store) Create() State {
	st := New(uuid.NewString())
	s.cache.Set(st.ID, st, ttlcache.DefaultTTL)
	s.log.WithField("session", st.ID).Debug("session created")
	return st
}

// Get returns the session with id.
func (s *Store) Get(id string) (State, bool) {
	it := s.cache.Get(id)
	if it == nil {
		return State{}, false
	}
	return it.Value(), true
}

// Put stores st under st.ID, replacing any earlier version.
func (s *Store) Put(st State) {
	s.cache.Set(st.ID, st, ttlcache.DefaultTTL)
}

// Update applies fn to the current state of id and stores the result when fn
// succeeds. On error the stored state is left as it was.
func (s *Store) Update(id string, fn func(State) (State, error)) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.Get(id)
	if !ok {
		return State{}, fmt.Errorf("session %s not found", id)
	}
	next, err := fn(cur)
	if err != nil {
		s.log.WithFields(logrus.Fields{"session": id, "error": err}).Debug("transition rejected")
		return cur, err
	}
	s.cache.Set(id, next, ttlcache.DefaultTTL)
	return next, nil
}

// Delete removes a session; it reports whether one existed.
func (s *Store) Delete(id string) bool {
	if s.cache.Get(id, ttlcache.WithDisableTouchOnHit[string, State]()) == nil {
		return false
	}
	s.cache.Delete(id)
	return true
}

// IDs returns the live session ids in sorted order.
func (s *Store) IDs() []string {
	ids := s.cache.Keys()
	sort.Strings(ids)
	return ids
}

// Len returns the number of live sessions.
func (s *Store) Len() int { return s.cache.Len() }

// Close stops the expiry loop. The store must not be used afterwards.
func (s *Store) Close() {
	s.stop()
	s.cache.Stop()
}
