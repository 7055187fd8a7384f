package assets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Faultbox/facefx-go/internal/facefx"
	"github.com/Faultbox/facefx-go/pkg/pack"
)

const heroIDs = "# hero\n10:root\n11:jaw\n20:smile\n"

func writePack(t *testing.T, files map[string][]byte) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), "assets.ffxpack")
	w, err := pack.Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for name, data := range files {
		if err := w.Add(name, data); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return p
}

func writeDir(t *testing.T, files map[string][]byte) string {
	t.Helper()

	dir := t.TempDir()
	for name, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, data, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func heroFiles() map[string][]byte {
	return map[string][]byte{
		"hero.ffxactor":        []byte("actor"),
		"hero.ffxbones":        []byte("bones"),
		"hero.ffxids":          []byte(heroIDs),
		"default/hi.ffxanim":   []byte("anim"),
		"default/hi.ogg":       []byte("ogg"),
		"chat/wave.ffxanim":    []byte("wave"),
		"chat/wave.mp3":        []byte("mp3"),
		"chat/wave.wav":        []byte("wav"),
		"default/mute.ffxanim": []byte("mute"),
	}
}

func TestLoadPrioritizesLastSource(t *testing.T) {
	m := NewManager()
	defer m.Close()

	if err := m.AddPack(writePack(t, map[string][]byte{"a.txt": []byte("pack"), "b.txt": []byte("b")})); err != nil {
		t.Fatalf("AddPack: %v", err)
	}
	if err := m.AddDir(writeDir(t, map[string][]byte{"a.txt": []byte("dir")})); err != nil {
		t.Fatalf("AddDir: %v", err)
	}

	tests := []struct {
		name string
		want string
	}{
		{"a.txt", "dir"},
		{"b.txt", "b"},
		{`.\b.txt`, "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := m.Load(tt.name)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Load = %q, want %q", data, tt.want)
			}
		})
	}

	if _, err := m.Load("missing.txt"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}
}

func TestLoadCaches(t *testing.T) {
	dir := writeDir(t, map[string][]byte{"a.txt": []byte("one")})
	m := NewManager()
	defer m.Close()
	if err := m.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	if _, err := m.Load("a.txt"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("two"), 0o644); err != nil {
		t.Fatal(err)
	}

	data, _ := m.Load("a.txt")
	if string(data) != "one" {
		t.Errorf("cached Load = %q, want one", data)
	}
	hits, misses := m.CacheStats()
	if hits != 1 || misses != 1 {
		t.Errorf("CacheStats = %d/%d, want 1/1", hits, misses)
	}

	m.Invalidate("a.txt")
	data, _ = m.Load("a.txt")
	if string(data) != "two" {
		t.Errorf("Load after Invalidate = %q, want two", data)
	}
}

func TestAddDirRejectsFile(t *testing.T) {
	dir := writeDir(t, map[string][]byte{"f": []byte("x")})
	m := NewManager()
	if err := m.AddDir(filepath.Join(dir, "f")); err == nil {
		t.Error("AddDir(file) succeeded")
	}
	if err := m.AddDir(filepath.Join(dir, "nope")); err == nil {
		t.Error("AddDir(missing) succeeded")
	}
}

func TestLoadDataset(t *testing.T) {
	m := NewManager()
	defer m.Close()
	if err := m.AddPack(writePack(t, heroFiles())); err != nil {
		t.Fatal(err)
	}

	ds, err := m.LoadDataset("hero")
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if !ds.IsValid() {
		t.Fatal("dataset not valid")
	}
	if ds.Name != "hero" {
		t.Errorf("Name = %q", ds.Name)
	}
	if name, ok := ds.IDs.Lookup(0x11); !ok || name != "jaw" {
		t.Errorf("Lookup(0x11) = %q, %v", name, ok)
	}

	if _, err := m.LoadDataset("villain"); !errors.Is(err, ErrNotFound) {
		t.Errorf("LoadDataset(villain) error = %v", err)
	}
}

func TestLoadDatasetBadIDs(t *testing.T) {
	files := heroFiles()
	files["hero.ffxids"] = []byte("not an id line\n")
	m := NewManager()
	defer m.Close()
	if err := m.AddDir(writeDir(t, files)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.LoadDataset("hero"); err == nil {
		t.Error("LoadDataset with bad ids succeeded")
	}
}

func TestLoadAnimation(t *testing.T) {
	m := NewManager()
	defer m.Close()
	if err := m.AddPack(writePack(t, heroFiles())); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		id        string
		wantData  string
		wantSound string
	}{
		{"hi", "anim", "default/hi.ogg"},
		{"default.hi", "anim", "default/hi.ogg"},
		{"chat.wave", "wave", "chat/wave.wav"},
		{"mute", "mute", ""},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			id := facefx.ParseAnimID(tt.id)
			if id.Group == "" {
				id.Group = "default"
			}
			a, err := m.LoadAnimation(id)
			if err != nil {
				t.Fatalf("LoadAnimation: %v", err)
			}
			if string(a.Data) != tt.wantData {
				t.Errorf("Data = %q, want %q", a.Data, tt.wantData)
			}
			if tt.wantSound == "" {
				if a.Sound != nil {
					t.Errorf("Sound = %+v, want nil", a.Sound)
				}
				return
			}
			if a.Sound == nil || a.Sound.Path != tt.wantSound {
				t.Fatalf("Sound = %+v, want %s", a.Sound, tt.wantSound)
			}
			if a.Sound.IsResident() {
				t.Error("sound loaded eagerly")
			}
			data, err := m.LoadSound(a.Sound.Path)
			if err != nil || len(data) == 0 {
				t.Errorf("LoadSound = %q, %v", data, err)
			}
		})
	}

	if _, err := m.LoadAnimation(facefx.AnimID{}); err == nil {
		t.Error("LoadAnimation(empty id) succeeded")
	}
}

func TestRequestDataset(t *testing.T) {
	m := NewManager()
	defer m.Close()
	if err := m.AddPack(writePack(t, heroFiles())); err != nil {
		t.Fatal(err)
	}
	s := NewStreamer(m)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := s.RequestDataset("hero")
	ds, err := r.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !r.Done() {
		t.Error("Done = false after Wait")
	}
	got, err := r.Result()
	if err != nil || got != ds {
		t.Errorf("Result = %p, %v, want %p", got, err, ds)
	}

	again, err := s.Dataset("hero")
	if err != nil || again != ds {
		t.Errorf("Dataset did not reuse the completed load")
	}

	bad := s.RequestDataset("villain")
	if _, err := bad.Wait(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("Wait(villain) error = %v", err)
	}
}

func TestRequestResultBeforeDone(t *testing.T) {
	r := &Request{name: "x", done: make(chan struct{})}
	if r.Done() {
		t.Error("Done = true")
	}
	if _, err := r.Result(); err == nil {
		t.Error("Result before done returned no error")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait error = %v", err)
	}
}

func TestConcurrentDatasetShared(t *testing.T) {
	m := NewManager()
	defer m.Close()
	if err := m.AddPack(writePack(t, heroFiles())); err != nil {
		t.Fatal(err)
	}
	s := NewStreamer(m)

	var wg sync.WaitGroup
	results := make([]*facefx.ActorDataset, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ds, err := s.Dataset("hero")
			if err != nil {
				t.Errorf("Dataset: %v", err)
			}
			results[i] = ds
		}(i)
	}
	wg.Wait()

	for i, ds := range results {
		if ds == nil || !ds.IsValid() {
			t.Errorf("result %d invalid", i)
		}
	}
}

func TestPreload(t *testing.T) {
	files := heroFiles()
	files["heroine.ffxactor"] = []byte("actor")
	files["heroine.ffxbones"] = []byte("bones")
	files["heroine.ffxids"] = []byte(heroIDs)

	m := NewManager()
	defer m.Close()
	if err := m.AddPack(writePack(t, files)); err != nil {
		t.Fatal(err)
	}
	s := NewStreamer(m)

	if err := s.Preload(context.Background(), []string{"hero", "heroine"}, 1); err != nil {
		t.Fatalf("Preload: %v", err)
	}
	if err := s.Preload(context.Background(), []string{"hero", "villain"}, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("Preload(villain) error = %v", err)
	}
}

func TestDatasetName(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"hero.ffxactor", "hero", true},
		{"actors/hero.ffxids", "actors/hero", true},
		{"hero.ffxbones", "hero", true},
		{"default/hi.ffxanim", "", false},
	}
	for _, tt := range tests {
		got, ok := datasetName(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("datasetName(%q) = %q, %v", tt.in, got, ok)
		}
	}
}

func TestWatcherInvalidates(t *testing.T) {
	dir := writeDir(t, heroFiles())
	m := NewManager()
	defer m.Close()
	if err := m.AddDir(dir); err != nil {
		t.Fatal(err)
	}
	s := NewStreamer(m)
	if _, err := s.Dataset("hero"); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(m, s, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	changed := make(chan string, 16)
	w.OnChange = func(name string) { changed <- name }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	if err := os.WriteFile(filepath.Join(dir, "hero.ffxids"), []byte("10:root\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case name := <-changed:
			if name != "hero.ffxids" {
				continue
			}
			ds, err := s.Dataset("hero")
			if err != nil {
				t.Fatalf("Dataset after change: %v", err)
			}
			if ds.IDs.Len() != 1 {
				t.Errorf("IDs.Len = %d, want 1", ds.IDs.Len())
			}
			return
		case <-timeout:
			t.Fatal("no change reported")
		}
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := writeDir(t, heroFiles())
	m := NewManager()
	defer m.Close()
	if err := m.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	w, err := NewWatcher(m, nil, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	changed := make(chan string, 16)
	w.OnChange = func(name string) { changed <- name }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	sub := filepath.Join(dir, "sub", "deeper")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "x.ffxanim"), []byte("anim"), 0o644); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case name := <-changed:
			if name == "sub/deeper/x.ffxanim" {
				return
			}
		case <-timeout:
			t.Fatal("change in new directory not reported")
		}
	}
}
