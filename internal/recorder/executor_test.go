package recorder

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutor_RunsInOrder(t *testing.T) {
	e := newExecutor(discardLogger())

	var mu sync.Mutex
	var got []int
	for i := 0; i < 50; i++ {
		i := i
		require.True(t, e.Submit("task", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		}))
	}
	e.Close()

	require.Len(t, got, 50)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestExecutor_SubmitDoesNotBlock(t *testing.T) {
	e := newExecutor(discardLogger())
	release := make(chan struct{})
	e.Submit("blocker", func() { <-release })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			e.Submit("queued", func() {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked behind a running task")
	}
	close(release)
	e.Close()
}

func TestExecutor_OneTaskAtATime(t *testing.T) {
	e := newExecutor(discardLogger())

	var mu sync.Mutex
	running, peak := 0, 0
	for i := 0; i < 20; i++ {
		e.Submit("task", func() {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			running--
			mu.Unlock()
		})
	}
	e.Close()
	assert.Equal(t, 1, peak)
}

func TestExecutor_SurvivesPanic(t *testing.T) {
	e := newExecutor(discardLogger())
	ran := false
	e.Submit("bad", func() { panic("boom") })
	e.Submit("good", func() { ran = true })
	e.Close()
	assert.True(t, ran)
}

func TestExecutor_DropsAfterClose(t *testing.T) {
	e := newExecutor(discardLogger())
	e.Close()
	assert.False(t, e.Submit("late", func() { t.Error("task ran after close") }))
	// Closing twice must not hang.
	e.Close()
}
