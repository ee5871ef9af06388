package settings

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/starford/kadisync/internal/apperr"
)

func TestOpen_MissingFileYieldsDefaults(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := st.Get(); !reflect.DeepEqual(got, Defaults()) {
		t.Errorf("settings = %+v, want defaults", got)
	}
}

func TestOpen_ExplicitValuesWin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	data := "pat: abc\nverify_ssl: false\ndefault_state: inactive\nexclude_folders: [Archive]\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s := st.Get()
	if s.Token != "abc" || s.VerifySSL || s.DefaultState != "inactive" {
		t.Errorf("explicit values lost: %+v", s)
	}
	if s.Host != "https://kadi.iam.kit.edu" || s.TimeoutMS != 60000 || s.DefaultVisibility != "private" {
		t.Errorf("defaults lost: %+v", s)
	}
	if !reflect.DeepEqual(s.ExcludeFolders, []string{"Archive"}) {
		t.Errorf("exclude folders = %v", s.ExcludeFolders)
	}
	if !s.Configured() {
		t.Error("host and token set, want configured")
	}
}

func TestOpen_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("default_state: draft\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestStore_SavePersistsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	st, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var notified []Settings
	st.OnChange(func(s Settings) { notified = append(notified, s) })

	if err := st.Update(func(s *Settings) {
		s.Token = "tok"
		s.TagFilter = []string{"lab"}
	}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if len(notified) != 1 || notified[0].Token != "tok" {
		t.Fatalf("listener calls = %+v", notified)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := reopened.Get(); got.Token != "tok" || !reflect.DeepEqual(got.TagFilter, []string{"lab"}) {
		t.Errorf("persisted = %+v", got)
	}
}

func TestStore_RejectsInvalidWithoutNotifying(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	called := false
	st.OnChange(func(Settings) { called = true })
	err = st.Update(func(s *Settings) { s.DefaultVisibility = "internal" })
	if err == nil {
		t.Fatal("expected validation error")
	}
	if called {
		t.Error("listener called for rejected settings")
	}
	if st.Get().DefaultVisibility != "private" {
		t.Error("rejected settings were applied")
	}
}

func TestStore_MaskedTokenKept(t *testing.T) {
	st, err := Open(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if err := st.Update(func(s *Settings) { s.Token = "real" }); err != nil {
		t.Fatal(err)
	}
	shown := st.Get().Redacted()
	if shown.Token != TokenMask {
		t.Fatalf("redacted token = %q", shown.Token)
	}
	shown.DebugMode = true
	if err := st.Save(shown); err != nil {
		t.Fatal(err)
	}
	if got := st.Get(); got.Token != "real" || !got.DebugMode {
		t.Errorf("settings = %+v", got)
	}
}

func TestSettings_Set(t *testing.T) {
	s := Defaults()
	for key, value := range map[string]string{
		"timeout":               "1500",
		"verifySSL":             "false",
		"tagFilter":             "a, b,,c",
		"customMetadataMapping": "author=creator",
	} {
		if err := s.Set(key, value); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}
	if s.TimeoutMS != 1500 || s.VerifySSL || !reflect.DeepEqual(s.TagFilter, []string{"a", "b", "c"}) {
		t.Errorf("settings = %+v", s)
	}
	if s.CustomMetadataMapping["author"] != "creator" {
		t.Errorf("mapping = %v", s.CustomMetadataMapping)
	}
	if err := s.Set("nope", "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("unknown key err = %v", err)
	}
	if err := s.Set("timeout", "soon"); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("bad int err = %v", err)
	}
}
