// SPDX-License-Identifier: MPL-2.0

package baseline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slowli/yab/pkg/benchid"
)

func writeOutput(t *testing.T, path, summary string) {
	t.Helper()
	content := "events: Ir\nsummary: " + summary + "\n"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed creating dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed writing output: %v", err)
	}
}

func TestStore_PromoteAndLoad(t *testing.T) {
	store := New(t.TempDir())
	id := benchid.New("fib", 20)

	fullTmp := store.TmpOutPath(id, "")
	calibTmp := store.TmpOutPath(id, "")
	writeOutput(t, fullTmp, "1000")
	writeOutput(t, calibTmp, "100")

	if err := store.Promote(DefaultName, id, "", fullTmp, calibTmp); err != nil {
		t.Fatalf("Promote() failed: %v", err)
	}
	if _, err := os.Stat(fullTmp); !os.IsNotExist(err) {
		t.Error("temp file should be gone after promotion")
	}

	record, err := store.Load(DefaultName, id, "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected a record")
	}
	if net := record.Net(); net.Instructions != 900 {
		t.Errorf("Net().Instructions = %d, want 900", net.Instructions)
	}
}

func TestStore_PromoteBacksUpPrevious(t *testing.T) {
	store := New(t.TempDir())
	id := benchid.ID{Name: "fib_short"}

	for i, summary := range []string{"1000", "2000"} {
		fullTmp := store.TmpOutPath(id, "")
		calibTmp := store.TmpOutPath(id, "")
		writeOutput(t, fullTmp, summary)
		writeOutput(t, calibTmp, "100")
		if err := store.Promote(DefaultName, id, "", fullTmp, calibTmp); err != nil {
			t.Fatalf("Promote() #%d failed: %v", i, err)
		}
	}

	current, err := store.Load(DefaultName, id, "")
	if err != nil || current == nil {
		t.Fatalf("Load() = %v, %v", current, err)
	}
	if current.Net().Instructions != 1900 {
		t.Errorf("current = %d, want 1900", current.Net().Instructions)
	}

	prior, err := store.LoadPrior(DefaultName, id, "")
	if err != nil || prior == nil {
		t.Fatalf("LoadPrior() = %v, %v", prior, err)
	}
	if prior.Net().Instructions != 900 {
		t.Errorf("prior = %d, want 900", prior.Net().Instructions)
	}
}

func TestStore_LoadAbsent(t *testing.T) {
	store := New(t.TempDir())
	record, err := store.Load(DefaultName, benchid.ID{Name: "nope"}, "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if record != nil {
		t.Errorf("Load() = %+v, want nil", record)
	}
}

func TestStore_CaptureFiles(t *testing.T) {
	store := New(t.TempDir())
	id := benchid.ID{Name: "parse"}

	fullTmp := store.TmpOutPath(id, "decode")
	calibTmp := store.TmpOutPath(id, "decode")
	writeOutput(t, fullTmp, "500")
	writeOutput(t, calibTmp, "50")
	if err := store.Promote(DefaultName, id, "decode", fullTmp, calibTmp); err != nil {
		t.Fatalf("Promote() failed: %v", err)
	}

	// Capture files live next to the full record, not in a nested dir.
	entries, err := os.ReadDir(store.Dir(DefaultName, id))
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	var names []string
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "capture.decode.out") {
		t.Errorf("capture file missing; dir has %s", joined)
	}

	record, err := store.Load(DefaultName, id, "decode")
	if err != nil || record == nil {
		t.Fatalf("Load() = %v, %v", record, err)
	}
	if record.Net().Instructions != 450 {
		t.Errorf("Net() = %d, want 450", record.Net().Instructions)
	}
	// The default capture remains unset.
	if full, _ := store.Load(DefaultName, id, ""); full != nil {
		t.Error("full record should be absent")
	}
}

func TestStore_RecoverInterrupted(t *testing.T) {
	store := New(t.TempDir())
	stray := store.TmpOutPath(benchid.ID{Name: "fib"}, "")
	writeOutput(t, stray, "123")

	if err := store.RecoverInterrupted(); err != nil {
		t.Fatalf("RecoverInterrupted() failed: %v", err)
	}
	entries, err := os.ReadDir(store.TmpDir())
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir has %d entries after recovery, want 0", len(entries))
	}
}

func TestStore_RecoverInterruptedNoDir(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "absent"))
	if err := store.RecoverInterrupted(); err != nil {
		t.Errorf("RecoverInterrupted() on absent dir failed: %v", err)
	}
}

func TestStore_Meta(t *testing.T) {
	store := New(t.TempDir())
	id := benchid.New("fib", 25)

	saved := Meta{SavedAt: time.Now().UTC().Truncate(time.Second), Cachegrind: "valgrind-3.22.0", Iterations: 17}
	if err := store.SaveMeta(DefaultName, id, saved); err != nil {
		t.Fatalf("SaveMeta() failed: %v", err)
	}

	loaded, err := store.LoadMeta(DefaultName, id)
	if err != nil {
		t.Fatalf("LoadMeta() failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected metadata")
	}
	if !loaded.SavedAt.Equal(saved.SavedAt) || loaded.Cachegrind != saved.Cachegrind || loaded.Iterations != 17 {
		t.Errorf("LoadMeta() = %+v, want %+v", loaded, saved)
	}

	if absent, err := store.LoadMeta(DefaultName, benchid.ID{Name: "nope"}); err != nil || absent != nil {
		t.Errorf("LoadMeta(absent) = %+v, %v", absent, err)
	}
}

func TestStore_NamedBaselineIsolation(t *testing.T) {
	store := New(t.TempDir())
	id := benchid.ID{Name: "fib_short"}

	fullTmp := store.TmpOutPath(id, "")
	calibTmp := store.TmpOutPath(id, "")
	writeOutput(t, fullTmp, "1000")
	writeOutput(t, calibTmp, "0")
	if err := store.Promote("main", id, "", fullTmp, calibTmp); err != nil {
		t.Fatalf("Promote() failed: %v", err)
	}

	if record, _ := store.Load(DefaultName, id, ""); record != nil {
		t.Error("record saved under 'main' must not appear under 'base'")
	}
	if record, _ := store.Load("main", id, ""); record == nil {
		t.Error("record missing under 'main'")
	}
}
