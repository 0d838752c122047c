// SPDX-License-Identifier: MIT
package utils

import (
	"errors"
	"sync"
	"testing"
)

func TestMockTransport(t *testing.T) {
	tests := []struct {
		name  string
		input []any
	}{
		{"Empty", nil},
		{"Single Value", []any{"snapshot"}},
		{"Mixed Values", []any{1, "two", struct{ N int }{3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt := &MockTransport{}
			for _, v := range tt.input {
				if err := mt.Send(v); err != nil {
					t.Errorf("MockTransport.Send() error = %v", err)
				}
			}

			sent := mt.Sent()
			if len(sent) != len(tt.input) {
				t.Fatalf("MockTransport.Sent() length = %d, want %d", len(sent), len(tt.input))
			}
			if len(tt.input) == 0 {
				if mt.Last() != nil {
					t.Errorf("MockTransport.Last() = %v, want nil", mt.Last())
				}
				return
			}
			if mt.Last() != tt.input[len(tt.input)-1] {
				t.Errorf("MockTransport.Last() = %v, want %v", mt.Last(), tt.input[len(tt.input)-1])
			}

			// The returned slice is a copy.
			sent[0] = "changed"
			if mt.Sent()[0] == "changed" {
				t.Errorf("MockTransport.Sent() returned internal slice")
			}
		})
	}
}

func TestMockTransportErrAndClose(t *testing.T) {
	boom := errors.New("boom")
	mt := &MockTransport{Err: boom}

	if err := mt.Send(1); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want %v", err, boom)
	}
	if len(mt.Sent()) != 1 {
		t.Errorf("failed sends are still recorded")
	}

	mt.Close()
	if !mt.Closed() {
		t.Errorf("Closed() = false after Close")
	}
	if err := mt.Send(2); !errors.Is(err, ErrMockClosed) {
		t.Errorf("Send() after Close error = %v, want %v", err, ErrMockClosed)
	}
}

func TestMockTransportConcurrent(t *testing.T) {
	mt := &MockTransport{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mt.Send(i)
		}(i)
	}
	wg.Wait()
	if n := len(mt.Sent()); n != 20 {
		t.Errorf("Sent() length = %d, want 20", n)
	}
}
