package graph

import (
	"sync"

	"github.com/pkg/errors"
)

// MemoryStore is a concurrency-safe in-memory Store. It is the reference
// implementation used by tests and by processes that do not attach an
// external knowledge store.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	links map[string]*Link
	// incoming maps node keys to the keys of links targeting them.
	incoming map[string]map[string]struct{}
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:    map[string]*Node{},
		links:    map[string]*Link{},
		incoming: map[string]map[string]struct{}{},
	}
}

func (s *MemoryStore) AddNode(typ NodeType, name string) (*Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := &Node{Type: typ, Name: name}
	if existing, ok := s.nodes[n.Key()]; ok {
		return existing, nil
	}
	s.nodes[n.Key()] = n
	return n, nil
}

func (s *MemoryStore) GetNode(typ NodeType, name string) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := &Node{Type: typ, Name: name}
	return s.nodes[n.Key()], nil
}

func (s *MemoryStore) AddLink(typ LinkType, targets ...*Node) (*Link, error) {
	if len(targets) == 0 {
		return nil, errors.New("link requires at least one target")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Intern targets so link targets always point at stored nodes.
	interned := make([]*Node, len(targets))
	for i, t := range targets {
		existing, ok := s.nodes[t.Key()]
		if !ok {
			existing = &Node{Type: t.Type, Name: t.Name}
			s.nodes[existing.Key()] = existing
		}
		interned[i] = existing
	}

	l := &Link{Type: typ, Targets: interned}
	if existing, ok := s.links[l.Key()]; ok {
		return existing, nil
	}
	s.links[l.Key()] = l
	for _, t := range interned {
		if s.incoming[t.Key()] == nil {
			s.incoming[t.Key()] = map[string]struct{}{}
		}
		s.incoming[t.Key()][l.Key()] = struct{}{}
	}
	return l, nil
}

func (s *MemoryStore) IncomingLinks(node *Node) ([]*Link, error) {
	if node == nil {
		return nil, errors.New("nil node")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Link
	for linkKey := range s.incoming[node.Key()] {
		if l, ok := s.links[linkKey]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *MemoryStore) RemoveLink(link *Link) error {
	if link == nil {
		return errors.New("nil link")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := link.Key()
	if _, ok := s.links[key]; !ok {
		return nil
	}
	delete(s.links, key)
	for _, t := range link.Targets {
		delete(s.incoming[t.Key()], key)
	}
	return nil
}

// NodeCount reports the number of stored nodes. Used by tests and the CLI.
func (s *MemoryStore) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// LinkCount reports the number of stored links.
func (s *MemoryStore) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.links)
}
