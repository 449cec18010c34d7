package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"connectcore/internal/blob/core"
)

func newTempStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestStorePutOverwriteGet(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)
	first, err := s.Put(ctx, "leads/leads_export_2025-03-10.csv", strings.NewReader("one"), core.PutOptions{ContentType: core.ContentTypeCSV, Metadata: map[string]string{"rows": "1"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	second, err := s.Put(ctx, "leads/leads_export_2025-03-10.csv", strings.NewReader("one\ntwo"), core.PutOptions{ContentType: core.ContentTypeCSV, Metadata: map[string]string{"rows": "2"}})
	if err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if first.ETag == second.ETag || second.Size != 7 {
		t.Fatalf("expected a new digest and size, got %+v then %+v", first, second)
	}
	info, rc, err := s.Get(ctx, "leads/leads_export_2025-03-10.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(body) != "one\ntwo" || info.Metadata["rows"] != "2" || info.ContentType != core.ContentTypeCSV {
		t.Fatalf("unexpected artifact %+v %q", info, body)
	}
}

func TestStoreListSkipsSidecars(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)
	for _, key := range []string{"b/two.csv", "a/one.csv", "c.csv"} {
		if _, err := s.Put(ctx, key, strings.NewReader(key), core.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	all, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var keys []string
	for _, info := range all {
		keys = append(keys, info.Key)
	}
	if strings.Join(keys, ",") != "a/one.csv,b/two.csv,c.csv" {
		t.Fatalf("unexpected keys %v", keys)
	}
	if only, _ := s.List(ctx, "b/"); len(only) != 1 {
		t.Fatalf("expected prefix filter, got %+v", only)
	}
}

func TestStoreDeleteAndURL(t *testing.T) {
	ctx := context.Background()
	s := newTempStore(t)
	if _, err := s.Put(ctx, "x.csv", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	url, err := s.URL(ctx, "x.csv", 0)
	if err != nil || !strings.HasPrefix(url, "file://") || !strings.HasSuffix(url, "/x.csv") {
		t.Fatalf("url: %v %s", err, url)
	}
	if ok, err := s.Delete(ctx, "x.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, err := os.Stat(filepath.Join(s.Root(), "x.csv.meta")); !os.IsNotExist(err) {
		t.Fatalf("sidecar should be removed: %v", err)
	}
	if ok, _ := s.Delete(ctx, "x.csv"); ok {
		t.Fatalf("second delete should report false")
	}
	if _, err := s.URL(ctx, "x.csv", 0); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, _, err := s.Get(ctx, "x.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreRejectsBadKeys(t *testing.T) {
	s := newTempStore(t)
	for _, key := range []string{"", "/abs.csv", "../escape.csv", "x.csv.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected rejection for %q", key)
		}
	}
}
