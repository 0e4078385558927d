package storage

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

// MemoryStore - Store в памяти процесса для разработки и тестов
type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[string]*Candidate
	sessions   map[string]*Session
	messages   map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		candidates: make(map[string]*Candidate),
		sessions:   make(map[string]*Session),
		messages:   make(map[string][]Message),
	}
}

// AddCandidate добавляет или заменяет кандидата
func (m *MemoryStore) AddCandidate(c *Candidate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := deepCopy(c)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.candidates[c.ID] = cp
}

func (m *MemoryStore) GetCandidate(ctx context.Context, id string) (*Candidate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.candidates[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(c), nil
}

func (m *MemoryStore) UpdateCandidateStatus(ctx context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	return nil
}

func (m *MemoryStore) UpdateCandidateInterview(ctx context.Context, id string, interviewScore, finalScore float64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return ErrNotFound
	}
	c.InterviewScore = interviewScore
	c.FinalScore = finalScore
	c.Status = status
	return nil
}

func (m *MemoryStore) FlagCandidate(ctx context.Context, id, violation string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.candidates[id]
	if !ok {
		return 0, ErrNotFound
	}
	c.Flags = append(c.Flags, Flag{Violation: violation, Timestamp: time.Now()})
	return len(c.Flags), nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := deepCopy(s)
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.sessions[s.ID] = cp
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return deepCopy(s), nil
}

func (m *MemoryStore) ActiveSessionByCandidate(ctx context.Context, candidateID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var active []*Session
	for _, s := range m.sessions {
		if s.CandidateID == candidateID && s.Active {
			active = append(active, s)
		}
	}
	if len(active) == 0 {
		return nil, ErrNotFound
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	return deepCopy(active[0]), nil
}

func (m *MemoryStore) LogMessage(ctx context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], msg)
	return nil
}

func (m *MemoryStore) Messages(ctx context.Context, sessionID string) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Message(nil), m.messages[sessionID]...), nil
}

// deepCopy через JSON, структуры маленькие
func deepCopy[T any](v *T) *T {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// MemoryCounter - ViolationCounter в памяти, когда Redis не настроен
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (c *MemoryCounter) Incr(ctx context.Context, sessionID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[sessionID]++
	return c.counts[sessionID], nil
}

func (c *MemoryCounter) Count(ctx context.Context, sessionID string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[sessionID], nil
}
