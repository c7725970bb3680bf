package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestWriter(dir string, id string) *Writer {
	w := New(dir, "nbs", KindFilePaths)
	w.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 15, 0, time.UTC) }
	w.newID = func() string { return id }
	return w
}

func TestFinalizeWritesOneLinePerItem(t *testing.T) {
	dir := t.TempDir()
	w := newTestWriter(dir, "a1b2c3d4")
	w.Add("/data/nbs/tiles/BH4PS5C8/BlueTopo_BH4PS5C8_20240117.tiff")
	w.Add("/data/nbs/tiles/BH4PS5C9/BlueTopo_BH4PS5C9_20240117.tiff")

	path, err := w.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if filepath.Base(path) != "nbs_filepaths_03_01_2026_093015_a1b2c3d4.txt" {
		t.Errorf("unexpected manifest name %q", filepath.Base(path))
	}

	payload, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(payload), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), payload)
	}
	if !strings.HasSuffix(lines[0], "BlueTopo_BH4PS5C8_20240117.tiff") {
		t.Errorf("first line = %q", lines[0])
	}
}

func TestFinalizeIsSingleUse(t *testing.T) {
	w := newTestWriter(t.TempDir(), "a1b2c3d4")
	w.Add("x")
	if _, err := w.Finalize(); err != nil {
		t.Fatalf("first Finalize: %v", err)
	}
	if _, err := w.Finalize(); err == nil {
		t.Fatal("second Finalize should fail")
	}
}

func TestSameSecondRunsDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	first := newTestWriter(dir, "11111111")
	second := newTestWriter(dir, "22222222")
	first.Add("a")
	second.Add("b")

	p1, err := first.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	p2, err := second.Finalize()
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Errorf("two same-second manifests share a path: %s", p1)
	}
}

func TestIsSidecar(t *testing.T) {
	if !IsSidecar("BlueTopo_BH4PS5C8_20240117.tiff.aux.xml") {
		t.Error("aux.xml should be a sidecar")
	}
	if IsSidecar("BlueTopo_BH4PS5C8_20240117.tiff") {
		t.Error("tiff is not a sidecar")
	}
	if IsSidecar("20190222113324825195_7cb9a8c2_pointData.csv") {
		t.Error("csv is not a sidecar")
	}
}
