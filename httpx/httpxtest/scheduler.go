package httpxtest

import (
	"testing"
	"time"
)

// HeldScheduler is an httpx.Scheduler that keeps every submitted task until
// the test takes it with Next and runs it.
type HeldScheduler struct {
	tasks chan func()
}

func NewHeldScheduler() *HeldScheduler {
	return &HeldScheduler{tasks: make(chan func(), 64)}
}

func (s *HeldScheduler) Submit(_ string, task func()) bool {
	s.tasks <- task
	return true
}

// Next waits for the next submitted task.
func (s *HeldScheduler) Next(t *testing.T) func() {
	t.Helper()

	select {
	case task := <-s.tasks:
		return task
	case <-time.After(2 * time.Second):
		t.Fatal("no task submitted")
		return nil
	}
}
