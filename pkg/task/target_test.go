package task

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestOutputTargetExists(t *testing.T) {
	dir := t.TempDir()

	full := filepath.Join(dir, "frame0.gro")
	writeFile(t, full, "atoms")

	empty := filepath.Join(dir, "empty.gro")
	writeFile(t, empty, "")

	sub := filepath.Join(dir, "repeat0")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"non-empty file", full, true},
		{"empty file", empty, false},
		{"missing file", filepath.Join(dir, "nope.gro"), false},
		{"directory", sub, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OutputTarget{Path: tt.path}.Exists()
			if got != tt.want {
				t.Errorf("Exists(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestTargetSetComplete(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.out")
	b := filepath.Join(dir, "b.out")
	writeFile(t, a, "x")

	set := TargetSet{{Path: a}, {Path: b}}
	if set.Complete() {
		t.Error("set with a missing target reported complete")
	}

	missing := set.Missing()
	if len(missing) != 1 || missing[0] != b {
		t.Errorf("Missing() = %v, want [%s]", missing, b)
	}

	writeFile(t, b, "y")
	if !set.Complete() {
		t.Error("fully present set reported incomplete")
	}
}

func TestEmptyTargetSetNeverComplete(t *testing.T) {
	if (TargetSet{}).Complete() {
		t.Error("a task with no declared evidence cannot be complete")
	}
}
