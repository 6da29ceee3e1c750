package shared

import (
	"bytes"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestChunk(t *testing.T) {
	tc := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{name: "empty", items: nil, size: 3, want: nil},
		{name: "exact multiple", items: []int{1, 2, 3, 4}, size: 2, want: [][]int{{1, 2}, {3, 4}}},
		{name: "remainder", items: []int{1, 2, 3, 4, 5}, size: 2, want: [][]int{{1, 2}, {3, 4}, {5}}},
		{name: "size larger than input", items: []int{1, 2}, size: 100, want: [][]int{{1, 2}}},
		{name: "non-positive size yields one chunk", items: []int{1, 2, 3}, size: 0, want: [][]int{{1, 2, 3}}},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			got := Chunk(tt.items, tt.size)
			if len(got) != len(tt.want) {
				t.Fatalf("Chunk() returned %d chunks, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if len(got[i]) != len(tt.want[i]) {
					t.Fatalf("chunk %d = %v, want %v", i, got[i], tt.want[i])
				}
				for j := range tt.want[i] {
					if got[i][j] != tt.want[i][j] {
						t.Errorf("chunk %d = %v, want %v", i, got[i], tt.want[i])
					}
				}
			}
		})
	}

	t.Run("250 ids split into feature batches", func(t *testing.T) {
		ids := make([]string, 250)
		for i := range ids {
			ids[i] = string(rune('a' + i%26))
		}
		batches := Chunk(ids, 100)
		if len(batches) != 3 || len(batches[2]) != 50 {
			t.Errorf("unexpected batch layout: %d batches", len(batches))
		}
	})
}

func TestLogger(t *testing.T) {
	t.Run("SetLogLevel", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := NewLogger(buf)

		if err := SetLogLevel(l, "warn"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if l.GetLevel() != log.WarnLevel {
			t.Errorf("expected warn level, got %v", l.GetLevel())
		}

		l.Info("hidden")
		if strings.Contains(buf.String(), "hidden") {
			t.Error("info message should be filtered at warn level")
		}

		if err := SetLogLevel(l, "loud"); err == nil {
			t.Error("expected error for unknown level")
		}
		if err := SetLogLevel(l, ""); err != nil {
			t.Errorf("empty level should be ignored, got %v", err)
		}
	})

	t.Run("WithLogger", func(t *testing.T) {
		buf := &bytes.Buffer{}
		l := WithLogger(NewLogger(buf), "run_id", "abc")
		l.Info("hello")
		if !strings.Contains(buf.String(), "run_id=abc") {
			t.Errorf("expected run_id field in output, got %q", buf.String())
		}
	})
}

func TestGenerate(t *testing.T) {
	if a, b := GenerateID(), GenerateID(); a == b || len(a) != 36 {
		t.Errorf("expected unique uuids, got %q and %q", a, b)
	}

	state, err := GenerateState()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if state == "" || strings.ContainsAny(state, "+/=") {
		t.Errorf("expected url-safe state, got %q", state)
	}
}
