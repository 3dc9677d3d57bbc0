package rules

import (
	"fmt"
	"sync"

	"github.com/droidagent/slack-gateway-go/internal/handler"
)

// Store holds the active RuleSet behind a hot-swap boundary. Readers never
// observe a partial set: Reload builds the replacement fully before
// publishing it, and a failed reload leaves the current set untouched.
type Store struct {
	mu       sync.RWMutex
	current  *RuleSet
	path     string
	registry *handler.Registry
}

// NewStore loads the rule file and returns a store serving it. A load
// failure here is fatal; the gateway must not start with a partial or
// invalid rule set.
func NewStore(path string, registry *handler.Registry) (*Store, error) {
	s := &Store{path: path, registry: registry}
	set, err := s.load()
	if err != nil {
		return nil, fmt.Errorf("rules: initial load: %w", err)
	}
	s.current = set
	return s, nil
}

// Current returns the active rule set. The returned set is immutable and
// remains valid even if a reload swaps in a replacement mid-dispatch.
func (s *Store) Current() *RuleSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Reload re-reads the rule file and atomically swaps in the new set.
// On any error the previous set stays active and the error is returned.
func (s *Store) Reload() error {
	set, err := s.load()
	if err != nil {
		return fmt.Errorf("rules: reload: %w", err)
	}

	s.mu.Lock()
	s.current = set
	s.mu.Unlock()
	return nil
}

func (s *Store) load() (*RuleSet, error) {
	defs, err := ParseFile(s.path)
	if err != nil {
		return nil, err
	}
	return Load(defs, s.registry)
}

// Path returns the rule file path the store watches.
func (s *Store) Path() string {
	return s.path
}
