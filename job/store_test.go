package job

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CreateAndGet(t *testing.T) {
	s := NewStore(time.Minute)

	id := s.Create()
	require.NotEmpty(t, id)

	j := s.Get(id)
	assert.Equal(t, StatusUploaded, j.Status)
	assert.Equal(t, 5, j.Progress)
	assert.Equal(t, "--:--", j.Remaining)
}

func TestStore_GetUnknown(t *testing.T) {
	s := NewStore(time.Minute)

	j := s.Get("never-created")
	assert.Equal(t, StatusUnknown, j.Status)
	assert.Equal(t, 0, j.Progress)
	assert.NotEmpty(t, j.Message)
}

func TestStore_ApplyMerges(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create()

	s.Apply(id, Update{Status: StatusAnalyzing, Progress: Progress(10), Message: "Анализируем видео"})
	s.Apply(id, Update{Progress: Progress(15), Speed: "1.5x"})

	j := s.Get(id)
	assert.Equal(t, StatusAnalyzing, j.Status)
	assert.Equal(t, 15, j.Progress)
	assert.Equal(t, "Анализируем видео", j.Message)
	assert.Equal(t, "1.5x", j.Speed)
	// Fields absent from the patch keep their previous value.
	assert.Equal(t, "00:00", j.Time)
}

func TestStore_ProgressNeverRegresses(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create()

	s.Apply(id, Update{Status: StatusProcessing, Progress: Progress(40)})
	s.Apply(id, Update{Progress: Progress(25)})

	assert.Equal(t, 40, s.Get(id).Progress)
}

func TestStore_ErrorResetsProgress(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create()

	s.Apply(id, Update{Status: StatusProcessing, Progress: Progress(60)})
	s.Apply(id, Update{Status: StatusError, Message: "Ошибка обработки видео"})

	j := s.Get(id)
	assert.Equal(t, StatusError, j.Status)
	assert.Equal(t, 0, j.Progress)
}

func TestStore_TerminalIsFinal(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create()

	s.Apply(id, Update{Status: StatusCompleted, Progress: Progress(100)})
	s.Apply(id, Update{Status: StatusProcessing, Progress: Progress(50), Message: "late"})

	j := s.Get(id)
	assert.Equal(t, StatusCompleted, j.Status)
	assert.Equal(t, 100, j.Progress)
	assert.NotEqual(t, "late", j.Message)
}

func TestStore_TerminalSchedulesExpiry(t *testing.T) {
	s := NewStore(10 * time.Millisecond)
	id := s.Create()

	var timerDelay time.Duration
	var fired sync.WaitGroup
	fired.Add(1)
	s.afterFunc = func(d time.Duration, f func()) *time.Timer {
		timerDelay = d
		return time.AfterFunc(0, func() {
			f()
			fired.Done()
		})
	}

	s.Apply(id, Update{Status: StatusCompleted, Progress: Progress(100)})
	fired.Wait()

	assert.Equal(t, 10*time.Millisecond, timerDelay)
	assert.Equal(t, StatusUnknown, s.Get(id).Status)
}

func TestStore_ConcurrentReadersOneWriter(t *testing.T) {
	s := NewStore(time.Minute)
	id := s.Create()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := 5; p <= 100; p++ {
			s.Apply(id, Update{Status: StatusProcessing, Progress: Progress(p)})
		}
	}()

	last := 0
	for {
		j := s.Get(id)
		assert.GreaterOrEqual(t, j.Progress, last)
		last = j.Progress
		select {
		case <-done:
			assert.Equal(t, 100, s.Get(id).Progress)
			return
		default:
		}
	}
}
