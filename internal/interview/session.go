package interview

import (
	"sync"

	"github.com/google/uuid"
)

// Triple is one confirmed (question, answer, explanation) record.
type Triple struct {
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Explanation string `json:"explanation,omitempty"`
}

// Session is the ephemeral interview state for one (worker, item) pair. It
// lives in process memory only; a restart re-interviews the current item from
// its first branch.
type Session struct {
	ID       string
	WorkerID string
	ItemID   string

	Answers []Triple

	tree           *Tree
	branchIdx      int
	node           *Node
	depth          int
	complete       bool
	shortCircuited bool
}

// NewSession starts an interview at the first branch root.
func NewSession(tree *Tree, workerID, itemID string) *Session {
	return &Session{
		ID:       uuid.NewString(),
		WorkerID: workerID,
		ItemID:   itemID,
		tree:     tree,
		node:     tree.Branches[0].Root,
	}
}

// BranchName returns the active branch, or the last branch once complete.
func (s *Session) BranchName() string {
	idx := s.branchIdx
	if idx >= len(s.tree.Branches) {
		idx = len(s.tree.Branches) - 1
	}
	return s.tree.Branches[idx].Name
}

// Current returns the node the worker is looking at; nil once complete.
func (s *Session) Current() *Node {
	return s.node
}

// Complete reports whether every required branch finished (or the precheck
// short-circuited).
func (s *Session) Complete() bool {
	return s.complete
}

// ShortCircuited reports whether the precheck ended the item early.
func (s *Session) ShortCircuited() bool {
	return s.shortCircuited
}

// Registry tracks the single live session per worker. Sessions are created
// when an item is presented and dropped the moment its label is recorded.
type Registry struct {
	mu       sync.Mutex
	byID     map[string]*Session
	byWorker map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byID:     make(map[string]*Session),
		byWorker: make(map[string]string),
	}
}

// Start replaces any existing session for the worker with a fresh one.
func (r *Registry) Start(tree *Tree, workerID, itemID string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byWorker[workerID]; ok {
		delete(r.byID, old)
	}
	s := NewSession(tree, workerID, itemID)
	r.byID[s.ID] = s
	r.byWorker[workerID] = s.ID
	return s
}

// Get looks a session up by ID.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	return s, ok
}

// Drop destroys a session after its label is recorded.
func (r *Registry) Drop(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byID[id]; ok {
		delete(r.byWorker, s.WorkerID)
		delete(r.byID, id)
	}
}
