package orchestrator

import (
	"sync"

	"github.com/mcdev12/tictactoe/go/internal/models"
)

// Registry is the set of live sessions with a participant index maintained
// in the same critical section as insert and remove.
type Registry struct {
	mu            sync.RWMutex
	sessions      map[string]*Session
	byParticipant map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:      make(map[string]*Session),
		byParticipant: make(map[string]*Session),
	}
}

// insert adds s, failing if any human in s is already in a live session.
func (r *Registry) insert(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	humans := s.humans()
	for _, h := range humans {
		if _, ok := r.byParticipant[h.participant.ID()]; ok {
			return reject(KindAlreadyInSession, "%s is already playing", h.participant)
		}
	}
	r.sessions[s.id] = s
	for _, h := range humans {
		r.byParticipant[h.participant.ID()] = s
	}
	return nil
}

func (r *Registry) remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.id]; !ok {
		return
	}
	delete(r.sessions, s.id)
	for _, h := range s.humans() {
		if r.byParticipant[h.participant.ID()] == s {
			delete(r.byParticipant, h.participant.ID())
		}
	}
}

// ByParticipant returns the live session p is playing in.
func (r *Registry) ByParticipant(p models.Participant) (*Session, bool) {
	if !p.IsHuman() {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byParticipant[p.ID()]
	return s, ok
}

func (r *Registry) Contains(p models.Participant) bool {
	_, ok := r.ByParticipant(p)
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
