package scheduler

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestScheduler_RegisterAndGetTasks(t *testing.T) {
	s := New(testLogger())

	s.Register("wip-purge", 24*time.Hour, func() error { return nil })
	s.Register("report", time.Hour, func() error { return nil })

	tasks := s.GetTasks()
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Name != "wip-purge" {
		t.Errorf("expected wip-purge, got %s", tasks[0].Name)
	}
}

func TestScheduler_Tick(t *testing.T) {
	s := New(testLogger())

	var count int
	s.Register("counter", time.Millisecond, func() error {
		count++
		return nil
	})

	// Force NextRun to past
	s.tasks[0].NextRun = time.Now().Add(-time.Second)

	s.tick(time.Now())

	if count != 1 {
		t.Errorf("expected handler called once, got %d", count)
	}
	if s.tasks[0].RunCount != 1 {
		t.Errorf("expected RunCount 1, got %d", s.tasks[0].RunCount)
	}
}

func TestScheduler_TickError(t *testing.T) {
	s := New(testLogger())

	s.Register("failing", time.Millisecond, func() error {
		return errors.New("db down")
	})
	s.tasks[0].NextRun = time.Now().Add(-time.Second)

	s.tick(time.Now())

	if s.tasks[0].LastError == nil {
		t.Error("expected LastError to be set")
	}

	tasks := s.GetTasks()
	if tasks[0].LastError == nil || *tasks[0].LastError != "db down" {
		t.Errorf("expected error message 'db down', got %v", tasks[0].LastError)
	}
}

func TestScheduler_TickClearsPreviousError(t *testing.T) {
	s := New(testLogger())

	fail := true
	s.Register("flaky", time.Millisecond, func() error {
		if fail {
			return errors.New("transient")
		}
		return nil
	})

	s.tasks[0].NextRun = time.Now().Add(-time.Second)
	s.tick(time.Now())
	if s.tasks[0].LastError == nil {
		t.Fatal("expected LastError after failing tick")
	}

	fail = false
	s.tasks[0].NextRun = time.Now().Add(-time.Second)
	s.tick(time.Now())
	if s.tasks[0].LastError != nil {
		t.Errorf("expected LastError cleared, got %v", s.tasks[0].LastError)
	}
	if s.tasks[0].RunCount != 2 {
		t.Errorf("expected RunCount 2, got %d", s.tasks[0].RunCount)
	}
}

func TestScheduler_ConcurrentTickAndGetTasks(t *testing.T) {
	s := New(testLogger())
	s.Register("busy", 0, func() error { return nil })

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.tick(time.Now().Add(time.Second))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.GetTasks()
		}
	}()
	wg.Wait()

	tasks := s.GetTasks()
	if tasks[0].RunCount != 200 {
		t.Errorf("expected RunCount 200, got %d", tasks[0].RunCount)
	}
}

func TestScheduler_SkipNotReady(t *testing.T) {
	s := New(testLogger())

	var count int
	s.Register("future", time.Hour, func() error {
		count++
		return nil
	})

	s.tick(time.Now())

	if count != 0 {
		t.Errorf("expected handler not called, got %d", count)
	}
}
