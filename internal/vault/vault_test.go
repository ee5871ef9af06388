package vault

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/starford/kadisync/internal/apperr"
	"github.com/starford/kadisync/internal/checksum"
	"github.com/starford/kadisync/internal/frontmatter"
	"github.com/starford/kadisync/internal/models"
	"github.com/starford/kadisync/internal/testutil"
)

func TestNew_NameFallsBackToRoot(t *testing.T) {
	dir, store := testutil.TestVault(t)
	v := New(store, "")
	if v.Name() == "" || v.Name() != lastElem(dir) {
		t.Errorf("name = %q, dir = %q", v.Name(), dir)
	}
	if New(store, "Lab").Name() != "Lab" {
		t.Error("explicit name ignored")
	}
}

func lastElem(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}

func TestNote_Missing(t *testing.T) {
	_, store := testutil.TestVault(t)
	if _, err := New(store, "v").Note("nope.md"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHeader_CachedCopy(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "a.md", "---\nfoo: 1\n---\nbody\n")
	v := New(store, "v")
	note, err := v.Note("a.md")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	h, err := v.Header(ctx, note)
	if err != nil {
		t.Fatal(err)
	}
	h.Set("foo", 99)

	again, _ := v.Header(ctx, note)
	if got, _ := again.Get("foo"); got != 1 {
		t.Errorf("cached header mutated: foo = %v", got)
	}

	testutil.WriteNote(t, store, "a.md", "---\nfoo: 2\n---\nbody\n")
	fresh, _ := v.Header(ctx, note)
	if got, _ := fresh.Get("foo"); got != 2 {
		t.Errorf("stale cache: foo = %v", got)
	}
}

func TestHeader_NoneAndInvalid(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "plain.md", "# Just text\n")
	testutil.WriteNote(t, store, "bad.md", "---\nfoo: [oops\n---\n")
	v := New(store, "v")
	ctx := context.Background()

	h, err := v.Header(ctx, models.NewNote("plain.md"))
	if err != nil || h != nil {
		t.Errorf("plain header = %v, %v", h, err)
	}
	if _, err := v.Header(ctx, models.NewNote("bad.md")); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestTags_HeaderThenBody(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "t.md", "---\ntags: [x, \"#y\"]\nkadi_tags: z\n---\nText #y #body\n")
	v := New(store, "v")
	got, err := v.Tags(context.Background(), models.NewNote("t.md"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"x", "y", "z", "body"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tags = %v, want %v", got, want)
	}
}

func TestProcessFrontmatter_PatchesOnlyChangedKeys(t *testing.T) {
	_, store := testutil.TestVault(t)
	const original = "---\n# keep me\nfoo:   1\nbar: \"x\"\n---\n# Title\n"
	testutil.WriteNote(t, store, "p.md", original)
	v := New(store, "v")

	sum, err := v.ProcessFrontmatter(context.Background(), models.NewNote("p.md"), func(h *frontmatter.Header) error {
		h.Set("kadi_id", 7)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	got := testutil.ReadNote(t, store, "p.md")
	want := "---\n# keep me\nfoo:   1\nbar: \"x\"\nkadi_id: 7\n---\n# Title\n"
	if got != want {
		t.Errorf("content = %q, want %q", got, want)
	}
	if sum != checksum.String(got) {
		t.Error("returned checksum does not match the written content")
	}
}

func TestProcessFrontmatter_ErrorLeavesNote(t *testing.T) {
	_, store := testutil.TestVault(t)
	const original = "---\nfoo: 1\n---\n"
	testutil.WriteNote(t, store, "p.md", original)
	v := New(store, "v")

	boom := errors.New("boom")
	_, err := v.ProcessFrontmatter(context.Background(), models.NewNote("p.md"), func(h *frontmatter.Header) error {
		h.Set("foo", 2)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if got := testutil.ReadNote(t, store, "p.md"); got != original {
		t.Errorf("content changed: %q", got)
	}
}

func TestProcessFrontmatter_Serialized(t *testing.T) {
	_, store := testutil.TestVault(t)
	testutil.WriteNote(t, store, "c.md", "---\nn: 0\n---\n")
	v := New(store, "v")
	note := models.NewNote("c.md")

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := v.ProcessFrontmatter(context.Background(), note, func(h *frontmatter.Header) error {
				n, _ := h.Get("n")
				h.Set("n", n.(int)+1)
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	h, _ := v.Header(context.Background(), note)
	if n, _ := h.Get("n"); n != 20 {
		t.Errorf("n = %v, want 20", n)
	}
}

func TestSaveFile_NeverOverwrites(t *testing.T) {
	_, store := testutil.TestVault(t)
	v := New(store, "v")
	if err := v.SaveFile("log.txt", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := v.SaveFile("log.txt", []byte("two")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}
