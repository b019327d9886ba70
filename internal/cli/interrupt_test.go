package cli

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

// fakeSignals hands the registered channel to the test.
func fakeSignals(h *InterruptHandler) <-chan chan<- os.Signal {
	registered := make(chan chan<- os.Signal, 1)
	h.notify = func(c chan<- os.Signal) { registered <- c }
	h.stop = func(chan<- os.Signal) {}
	return registered
}

func TestNewInterruptHandler(t *testing.T) {
	handler := NewInterruptHandler(nil)
	assert.NotNil(t, handler.writer)
	assert.False(t, handler.WasInterrupted())
}

func TestHandleInterrupts(t *testing.T) {
	tests := []struct {
		name        string
		hint        string
		expected    []string
		notExpected []string
	}{
		{
			name:     "with hint",
			hint:     "Pending stake payments: run aromance verify retry",
			expected: []string{"Session interrupted!", "aromance verify retry", "Sampai jumpa!"},
		},
		{
			name:        "without hint",
			expected:    []string{"Session interrupted!", "Sampai jumpa!"},
			notExpected: []string{"verify retry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := &syncBuffer{}
			handler := NewInterruptHandler(output)
			registered := fakeSignals(handler)

			ctx := handler.HandleInterrupts(context.Background(), tt.hint)
			sig := <-registered

			select {
			case <-ctx.Done():
				t.Fatal("context should not be canceled before a signal")
			default:
			}

			sig <- os.Interrupt
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
				t.Fatal("context was not canceled by the signal")
			}

			require.Eventually(t, handler.WasInterrupted, time.Second, 5*time.Millisecond)
			out := output.String()
			for _, want := range tt.expected {
				assert.Contains(t, out, want)
			}
			for _, unwanted := range tt.notExpected {
				assert.NotContains(t, out, unwanted)
			}
			assert.Equal(t, 1, strings.Count(out, "Session interrupted!"))
		})
	}
}

func TestHandleInterruptsParentCancel(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output)
	registered := fakeSignals(handler)

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent, "")
	<-registered
	cancel()

	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
	assert.Empty(t, output.String())
}
