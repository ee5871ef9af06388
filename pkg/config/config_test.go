package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `yaml:"name"`
	Count int    `yaml:"count"`
}

func (s *sample) Validate() error {
	if s.Count < 0 {
		return errors.New("count must not be negative")
	}
	return nil
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_NAME", "from-env")
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("name: ${SAMPLE_NAME}\ncount: 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	var s sample
	if err := Load(path, &s); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Name != "from-env" || s.Count != 2 {
		t.Errorf("loaded %+v", s)
	}
}

func TestSaveAndLoadIfExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "c.yaml")

	var missing sample
	ok, err := LoadIfExists(path, &missing)
	if ok || err != nil {
		t.Fatalf("LoadIfExists on missing file = %v, %v", ok, err)
	}

	if err := Save(path, &sample{Name: "x", Count: 3}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	var got sample
	ok, err = LoadIfExists(path, &got)
	if !ok || err != nil {
		t.Fatalf("LoadIfExists = %v, %v", ok, err)
	}
	if got != (sample{Name: "x", Count: 3}) {
		t.Errorf("round trip = %+v", got)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := Save(path, &sample{Count: -1}); err == nil {
		t.Fatal("expected validation error")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("invalid config was written: %v", err)
	}
}
