// Package session holds the client-side state of one signed-in user:
// identity, cart, a read-through cache of remote data, in-flight guards,
// and change notification.
//
// Store is safe for concurrent use. Values are copied on the way in and
// on the way out, so callers never share mutable state with the store.
package session

import (
	"sort"
	"sync"

	"github.com/Veraticus/aromance/internal/common"
	"github.com/Veraticus/aromance/internal/model"
)

// Change names the part of the store a mutation touched.
type Change string

// Change kinds delivered to subscribers.
const (
	ChangeIdentity        Change = "identity"
	ChangeCart            Change = "cart"
	ChangeProfile         Change = "profile"
	ChangeProducts        Change = "products"
	ChangeRecommendations Change = "recommendations"
	ChangeTransactions    Change = "transactions"
	ChangeReviews         Change = "reviews"
	ChangeConsultation    Change = "consultation"
	ChangeLoading         Change = "loading"
)

// Listener receives change notifications. It is called without the store
// lock held and may read from the store.
type Listener func(Change)

// Store is the single owner of session state.
type Store struct {
	profile         *model.UserProfile
	reviews         map[string][]model.Review
	listeners       map[int]Listener
	inFlight        map[string]bool
	loading         map[string]bool
	products        []model.Product
	recommendations []model.Recommendation
	transactions    []model.Transaction
	cart            []model.CartLine
	consultation    Consultation
	identity        model.Identity
	generation      uint64
	nextListener    int
	mu              sync.Mutex
}

// NewStore returns an empty, disconnected session.
func NewStore() *Store {
	return &Store{
		reviews:   make(map[string][]model.Review),
		listeners: make(map[int]Listener),
		inFlight:  make(map[string]bool),
		loading:   make(map[string]bool),
	}
}

// Subscribe registers fn for change notifications and returns a function
// that removes it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// notify delivers changes to every listener in subscription order. It
// must be called without s.mu held.
func (s *Store) notify(changes ...Change) {
	if len(changes) == 0 {
		return
	}
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]Listener, len(ids))
	for i, id := range ids {
		fns[i] = s.listeners[id]
	}
	s.mu.Unlock()

	for _, fn := range fns {
		for _, c := range changes {
			fn(c)
		}
	}
}

// Generation increments whenever the signed-in identity changes.
// Workflows capture it before a remote call and drop results whose
// generation is stale.
func (s *Store) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Current reports whether gen is still the live generation.
func (s *Store) Current(gen uint64) bool {
	return s.Generation() == gen
}

// Begin marks key as in flight. The returned release must be called when
// the operation ends. A second Begin on a busy key fails with a
// validation error.
func (s *Store) Begin(key string) (release func(), err error) {
	s.mu.Lock()
	if s.inFlight[key] {
		s.mu.Unlock()
		return nil, common.Validation(key, "operation already in progress")
	}
	s.inFlight[key] = true
	s.loading[key] = true
	s.mu.Unlock()
	s.notify(ChangeLoading)

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.inFlight, key)
			delete(s.loading, key)
			s.mu.Unlock()
			s.notify(ChangeLoading)
		})
	}, nil
}

// SetLoading sets or clears the loading flag for op.
func (s *Store) SetLoading(op string, loading bool) {
	s.mu.Lock()
	if loading {
		s.loading[op] = true
	} else {
		delete(s.loading, op)
	}
	s.mu.Unlock()
	s.notify(ChangeLoading)
}

// Loading returns the set of operations currently loading.
func (s *Store) Loading() map[string]bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]bool, len(s.loading))
	for k, v := range s.loading {
		out[k] = v
	}
	return out
}

// Snapshot is a consistent, detached copy of the whole session.
type Snapshot struct {
	Profile         *model.UserProfile
	Loading         map[string]bool
	Products        []model.Product
	Recommendations []model.Recommendation
	Transactions    []model.Transaction
	Cart            []model.CartLine
	Consultation    Consultation
	Identity        model.Identity
	CartTotal       uint64
	Generation      uint64
}

// Snapshot copies the session under one lock.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Identity:        s.identity,
		Products:        cloneProducts(s.products),
		Recommendations: append([]model.Recommendation(nil), s.recommendations...),
		Transactions:    cloneTransactions(s.transactions),
		Cart:            s.cartLinesLocked(),
		Consultation:    s.consultation.clone(),
		Generation:      s.generation,
		Loading:         make(map[string]bool, len(s.loading)),
	}
	if s.profile != nil {
		p := s.profile.Clone()
		snap.Profile = &p
	}
	for k, v := range s.loading {
		snap.Loading[k] = v
	}
	snap.CartTotal = sumLines(snap.Cart)
	return snap
}
