package job

import (
	"log"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"
)

// Store is the in-memory job table. Status polling reads concurrently with
// the single workflow goroutine that owns each job's writes; the expiry
// timer is armed once, when a job turns terminal.
type Store struct {
	mu        sync.RWMutex
	jobs      map[string]*Job
	retention time.Duration

	// afterFunc is swappable for tests.
	afterFunc func(d time.Duration, f func()) *time.Timer
}

func NewStore(retention time.Duration) *Store {
	return &Store{
		jobs:      make(map[string]*Job),
		retention: retention,
		afterFunc: time.AfterFunc,
	}
}

// Create registers a fresh job in the uploaded state and returns its id.
func (s *Store) Create() string {
	id := shortuuid.New()
	s.mu.Lock()
	s.jobs[id] = &Job{
		ID:        id,
		Status:    StatusUploaded,
		Progress:  5,
		Message:   "Файл загружен",
		Stage:     "Подготовка",
		Time:      "00:00",
		Remaining: "--:--",
		Speed:     "-",
	}
	s.mu.Unlock()
	return id
}

// Apply merges a partial update into the job. Progress never regresses
// while the job is live; an error status resets it to zero. The first
// terminal update schedules the record's own deletion.
func (s *Store) Apply(id string, u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok || j.Status.IsTerminal() {
		return
	}

	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Progress != nil {
		p := *u.Progress
		if p > j.Progress || j.Status.IsTerminal() {
			j.Progress = p
		}
	}
	if j.Status == StatusError {
		j.Progress = 0
	}
	if u.Message != "" {
		j.Message = u.Message
	}
	if u.Stage != "" {
		j.Stage = u.Stage
	}
	if u.Time != "" {
		j.Time = u.Time
	}
	if u.Remaining != "" {
		j.Remaining = u.Remaining
	}
	if u.Speed != "" {
		j.Speed = u.Speed
	}
	if u.Result != nil {
		j.Result = u.Result
	}

	if j.Status.IsTerminal() {
		s.scheduleExpiry(id)
	}
}

// scheduleExpiry must be called with the lock held.
func (s *Store) scheduleExpiry(id string) {
	s.afterFunc(s.retention, func() {
		s.Delete(id)
		log.Printf("[%s] job record expired", shortID(id))
	})
}

// Get returns a copy of the job, or a synthetic unknown record so polling
// clients never get a hard error for an expired or foreign id.
func (s *Store) Get(id string) Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if j, ok := s.jobs[id]; ok {
		return *j
	}
	return Job{
		ID:       id,
		Status:   StatusUnknown,
		Progress: 0,
		Message:  "Задача не найдена",
	}
}

func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.jobs, id)
	s.mu.Unlock()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
