package orchestrator

import (
	"sync"
	"time"

	"github.com/mcdev12/tictactoe/go/internal/models"
	"github.com/samber/lo"
)

// QueueEntry is a participant waiting for an opponent.
type QueueEntry struct {
	Participant models.Participant
	Name        string
	Rating      int
	EnqueuedAt  time.Time

	ticket uint64
}

func (e QueueEntry) seat() seat {
	return seat{participant: e.Participant, rating: e.Rating, name: e.Name}
}

// Queue holds waiting participants in enqueue order. The orchestrator holds
// mu across registry checks and session creation, so a participant can never
// be queued and playing at the same time.
type Queue struct {
	mu      sync.Mutex
	entries []QueueEntry
	tickets uint64
}

func NewQueue() *Queue {
	return &Queue{}
}

// Len returns the number of waiting participants.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether p is waiting.
func (q *Queue) Contains(p models.Participant) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.getLocked(p)
	return ok
}

func (q *Queue) getLocked(p models.Participant) (QueueEntry, bool) {
	return lo.Find(q.entries, func(e QueueEntry) bool { return e.Participant == p })
}

func (q *Queue) addLocked(e QueueEntry) QueueEntry {
	q.tickets++
	e.ticket = q.tickets
	q.entries = append(q.entries, e)
	return e
}

func (q *Queue) removeLocked(p models.Participant) bool {
	n := len(q.entries)
	q.entries = lo.Reject(q.entries, func(e QueueEntry, _ int) bool { return e.Participant == p })
	return len(q.entries) != n
}

// partnerLocked finds the earliest-queued other participant within window
// rating points of e.
func (q *Queue) partnerLocked(e QueueEntry, window int) (QueueEntry, bool) {
	return lo.Find(q.entries, func(c QueueEntry) bool {
		if c.Participant == e.Participant {
			return false
		}
		diff := c.Rating - e.Rating
		if diff < 0 {
			diff = -diff
		}
		return diff <= window
	})
}
