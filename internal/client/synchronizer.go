package client

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/amaumene/towatch/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrLoadFailed   = errors.New("failed to load list")
	ErrSaveFailed   = errors.New("failed to save item")
	ErrRemoveFailed = errors.New("failed to remove item")
)

// Backend is the durable side of the list
type Backend interface {
	List(ctx context.Context) ([]models.ToWatchItem, error)
	Add(ctx context.Context, item models.ToWatchItem) error
	Remove(ctx context.Context, mediaID string) error
}

// Op is the mutation chosen by Toggle
type Op string

const (
	OpNone   Op = "none"
	OpAdd    Op = "add"
	OpRemove Op = "remove"
)

// Result is how a toggle ended
type Result int

const (
	// Skipped means another toggle for the same media id was in flight
	Skipped Result = iota
	// Committed means the backend confirmed the optimistic change
	Committed
	// RolledBack means the backend failed and the optimistic change was undone
	RolledBack
)

func (r Result) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("Result(%d)", int(r))
	}
}

// Outcome describes a finished Toggle
type Outcome struct {
	Op     Op
	Result Result
	Err    error
}

// tentative is a local change applied before the backend answers
type tentative struct {
	op       Op
	item     models.ToWatchItem
	snapshot []models.ToWatchItem
}

// Synchronizer keeps a local copy of the list in step with the backend.
// Mutations are applied locally first and undone if the backend call fails.
// At most one mutation per media id is in flight.
type Synchronizer struct {
	backend Backend
	logger  *logrus.Logger

	mu              sync.Mutex
	items           []models.ToWatchItem
	pending         map[string]struct{}
	err             error
	unauthenticated bool
	seeded          bool
	loading         bool
}

// NewSynchronizer creates a synchronizer. A non-empty seed is trusted and
// Load will not fetch.
func NewSynchronizer(backend Backend, seed []models.ToWatchItem, logger *logrus.Logger) *Synchronizer {
	items := make([]models.ToWatchItem, len(seed))
	copy(items, seed)

	return &Synchronizer{
		backend: backend,
		logger:  logger,
		items:   items,
		pending: make(map[string]struct{}),
		seeded:  len(seed) > 0,
		loading: true,
	}
}

// Load performs the initial fetch unless the synchronizer was seeded.
// A rejected session is not an error: the list becomes empty and
// Unauthenticated reports true.
func (s *Synchronizer) Load(ctx context.Context) error {
	s.mu.Lock()
	if s.seeded {
		s.loading = false
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx)
}

// Refresh replaces the local list with the backend's
func (s *Synchronizer) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	items, err := s.backend.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false

	switch {
	case errors.Is(err, ErrUnauthenticated):
		s.items = []models.ToWatchItem{}
		s.err = ErrUnauthenticated
		s.unauthenticated = true
		return nil
	case err != nil:
		s.err = fmt.Errorf("%w: %w", ErrLoadFailed, err)
		s.logger.WithError(err).Warn("Failed to load to-watch list")
		return s.err
	}

	s.items = items
	s.err = nil
	s.unauthenticated = false
	return nil
}

// IsSaved reports whether the media id is in the local list
func (s *Synchronizer) IsSaved(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(mediaID) >= 0
}

// Toggle removes the item if saved and adds it otherwise
func (s *Synchronizer) Toggle(ctx context.Context, item models.ToWatchItem) Outcome {
	change, ok := s.apply(item)
	if !ok {
		return Outcome{Op: OpNone, Result: Skipped}
	}

	var err error
	switch change.op {
	case OpAdd:
		err = s.backend.Add(ctx, item)
	case OpRemove:
		err = s.backend.Remove(ctx, item.MediaID)
	}

	return s.settle(change, err)
}

// apply records the optimistic change and marks the media id pending
func (s *Synchronizer) apply(item models.ToWatchItem) (tentative, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.pending[item.MediaID]; busy {
		return tentative{}, false
	}
	s.pending[item.MediaID] = struct{}{}

	if s.indexOf(item.MediaID) >= 0 {
		snapshot := make([]models.ToWatchItem, len(s.items))
		copy(snapshot, s.items)
		s.items = without(s.items, item.MediaID)
		return tentative{op: OpRemove, item: item, snapshot: snapshot}, true
	}

	s.items = append(s.items, item)
	return tentative{op: OpAdd, item: item}, true
}

// settle commits or undoes the change once the backend has answered
func (s *Synchronizer) settle(change tentative, err error) Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, change.item.MediaID)

	if err == nil {
		return Outcome{Op: change.op, Result: Committed}
	}

	// A 409 is rolled back like any other failure
	switch change.op {
	case OpAdd:
		s.items = without(s.items, change.item.MediaID)
		s.err = fmt.Errorf("%w: %w", ErrSaveFailed, err)
	case OpRemove:
		s.items = change.snapshot
		s.err = fmt.Errorf("%w: %w", ErrRemoveFailed, err)
	}

	s.logger.WithError(err).WithFields(logrus.Fields{
		"op":       string(change.op),
		"media_id": change.item.MediaID,
	}).Warn("Rolled back to-watch change")

	return Outcome{Op: change.op, Result: RolledBack, Err: s.err}
}

// Items returns a copy of the local list
func (s *Synchronizer) Items() []models.ToWatchItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]models.ToWatchItem, len(s.items))
	copy(items, s.items)
	return items
}

// PendingIDs returns the media ids with a mutation in flight, sorted
func (s *Synchronizer) PendingIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Err returns the last recorded failure
func (s *Synchronizer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unauthenticated reports whether the last load was rejected for lack of a session
func (s *Synchronizer) Unauthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unauthenticated
}

// Loading reports whether the initial load has not finished yet
func (s *Synchronizer) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Synchronizer) indexOf(mediaID string) int {
	for i, item := range s.items {
		if item.MediaID == mediaID {
			return i
		}
	}
	return -1
}

func without(items []models.ToWatchItem, mediaID string) []models.ToWatchItem {
	out := make([]models.ToWatchItem, 0, len(items))
	for _, item := range items {
		if item.MediaID != mediaID {
			out = append(out, item)
		}
	}
	return out
}
