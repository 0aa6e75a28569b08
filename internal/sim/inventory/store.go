// Package inventory holds slot-based agent inventories in memory.
package inventory

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrAgentExists   = errors.New("agent already exists")
	ErrNotFound      = errors.New("item not in inventory")
	ErrInventoryFull = errors.New("inventory full")
	ErrConflict      = errors.New("inventory changed concurrently")
	ErrBadSlot       = errors.New("slot out of range")
)

type Stack struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

func (s Stack) Empty() bool { return s.Item == "" || s.Count <= 0 }

// AgentState is the exported form of one agent's inventory.
type AgentState struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Slots []Stack `json:"slots"`
}

type agent struct {
	id      string
	name    string
	slots   []Stack
	version uint64
}

// Store is safe for concurrent use. Each call is applied atomically; the
// store is the serialization point between sessions that touch the same agent.
type Store struct {
	mu       sync.Mutex
	maxStack int
	agents   map[string]*agent
}

func NewStore(maxStack int) *Store {
	if maxStack <= 0 {
		maxStack = 1
	}
	return &Store{maxStack: maxStack, agents: map[string]*agent{}}
}

func (s *Store) AddAgent(id, name string, slots int) error {
	if id == "" || slots <= 0 {
		return fmt.Errorf("add agent %q: bad arguments", id)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[id]; ok {
		return fmt.Errorf("add agent %s: %w", id, ErrAgentExists)
	}
	s.agents[id] = &agent{id: id, name: name, slots: make([]Stack, slots)}
	return nil
}

func (s *Store) get(id string) (*agent, error) {
	a := s.agents[id]
	if a == nil {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownAgent)
	}
	return a, nil
}

func (s *Store) SlotCount(agentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return 0, err
	}
	return len(a.slots), nil
}

func (s *Store) ItemAt(agentID string, slot int) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return "", false, err
	}
	if slot < 0 || slot >= len(a.slots) {
		return "", false, fmt.Errorf("%s slot %d: %w", agentID, slot, ErrBadSlot)
	}
	st := a.slots[slot]
	if st.Empty() {
		return "", false, nil
	}
	return st.Item, true, nil
}

func (s *Store) RemoveOne(agentID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return err
	}
	for i := range a.slots {
		st := &a.slots[i]
		if st.Empty() || st.Item != id {
			continue
		}
		st.Count--
		if st.Count <= 0 {
			*st = Stack{}
		}
		a.version++
		return nil
	}
	return fmt.Errorf("remove %s from %s: %w", id, agentID, ErrNotFound)
}

// AddOne tops up the first non-full stack of id, else fills the first empty slot.
func (s *Store) AddOne(agentID, id string) error {
	if id == "" {
		return fmt.Errorf("add to %s: empty item id", agentID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return err
	}
	if !s.addLocked(a, id) {
		return fmt.Errorf("add %s to %s: %w", id, agentID, ErrInventoryFull)
	}
	a.version++
	return nil
}

func (s *Store) addLocked(a *agent, id string) bool {
	for i := range a.slots {
		st := &a.slots[i]
		if st.Item == id && st.Count > 0 && st.Count < s.maxStack {
			st.Count++
			return true
		}
	}
	for i := range a.slots {
		if a.slots[i].Empty() {
			a.slots[i] = Stack{Item: id, Count: 1}
			return true
		}
	}
	return false
}

// Give adds n units of id, failing without change if they do not all fit.
func (s *Store) Give(agentID, id string, n int) error {
	if n <= 0 || id == "" {
		return fmt.Errorf("give %q x%d: bad arguments", id, n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return err
	}
	before := append([]Stack(nil), a.slots...)
	for i := 0; i < n; i++ {
		if !s.addLocked(a, id) {
			a.slots = before
			return fmt.Errorf("give %s x%d to %s: %w", id, n, agentID, ErrInventoryFull)
		}
	}
	a.version++
	return nil
}

// Version increases on every mutation of agentID's inventory.
func (s *Store) Version(agentID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return 0, err
	}
	return a.version, nil
}

// Counts sums units per item id.
func (s *Store) Counts(agentID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.get(agentID)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, st := range a.slots {
		if st.Empty() {
			continue
		}
		out[st.Item] += st.Count
	}
	return out, nil
}

func (s *Store) Agents() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (s *Store) Export() []AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.agents))
	for id := range s.agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]AgentState, 0, len(ids))
	for _, id := range ids {
		a := s.agents[id]
		out = append(out, AgentState{ID: a.id, Name: a.name, Slots: append([]Stack(nil), a.slots...)})
	}
	return out
}

// Import replaces the store contents.
func (s *Store) Import(states []AgentState) error {
	agents := make(map[string]*agent, len(states))
	for _, st := range states {
		if st.ID == "" || len(st.Slots) == 0 {
			return fmt.Errorf("import: agent %q has no slots", st.ID)
		}
		if _, dup := agents[st.ID]; dup {
			return fmt.Errorf("import %s: %w", st.ID, ErrAgentExists)
		}
		for i, sl := range st.Slots {
			if sl.Count < 0 || sl.Count > s.maxStack || (sl.Count > 0 && sl.Item == "") {
				return fmt.Errorf("import %s slot %d: bad stack %+v", st.ID, i, sl)
			}
		}
		slots := make([]Stack, len(st.Slots))
		for i, sl := range st.Slots {
			if !sl.Empty() {
				slots[i] = sl
			}
		}
		agents[st.ID] = &agent{id: st.ID, name: st.Name, slots: slots}
	}
	s.mu.Lock()
	s.agents = agents
	s.mu.Unlock()
	return nil
}
