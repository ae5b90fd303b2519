package verse

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWords(t *testing.T) {
	for _, tt := range []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "For God so loved", []string{"for", "god", "so", "loved"}},
		{"punctuation", "loved the world, that He gave...", []string{"loved", "the", "world", "that", "he", "gave"}},
		{"apostrophe kept", "the Lord's prayer", []string{"the", "lord's", "prayer"}},
		{"quotes stripped", "'begin' and 'end'", []string{"begin", "and", "end"}},
		{"numbers", "Psalm 23 verse 1", []string{"psalm", "23", "verse", "1"}},
		{"empty", "  \n\t ", nil},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := Words(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Words(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestGrade(t *testing.T) {
	ref := "For God so loved the world"

	for _, tt := range []struct {
		name    string
		spoken  string
		matched int
	}{
		{"perfect", "for god so loved the world", 6},
		{"punctuation ignored", "For God, so loved -- the world!", 6},
		{"one word dropped", "for god so loved world", 5},
		{"inserted words", "for um god so like loved the world", 6},
		{"reordered tail", "for god the world so loved", 4},
		{"nothing right", "completely different words here", 0},
		{"empty recitation", "", 0},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := Grade(ref, tt.spoken)
			if s.Total != 6 {
				t.Fatalf("Total = %d, want 6", s.Total)
			}
			if s.Matched != tt.matched {
				t.Errorf("Matched = %d, want %d", s.Matched, tt.matched)
			}
		})
	}
}

func TestAccuracy(t *testing.T) {
	if got := (Score{Matched: 3, Total: 4}).Accuracy(); math.Abs(got-0.75) > 1e-9 {
		t.Errorf("Accuracy = %v, want 0.75", got)
	}
	if got := (Score{}).Accuracy(); got != 0 {
		t.Errorf("empty reference Accuracy = %v, want 0", got)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "verse.txt")
	if err := os.WriteFile(path, []byte("  In the beginning was the Word.\n"), 0644); err != nil {
		t.Fatal(err)
	}
	v, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if v.Text != "In the beginning was the Word." {
		t.Errorf("Text = %q", v.Text)
	}

	empty := filepath.Join(dir, "empty.txt")
	os.WriteFile(empty, []byte("\n\n"), 0644)
	if _, err := LoadFile(empty); err == nil {
		t.Error("expected error for empty file")
	}

	if _, err := LoadFile(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}
