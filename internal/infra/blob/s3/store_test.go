package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"connectcore/internal/blob/core"
)

// fakeS3 serves the small subset of the S3 REST API the store uses.
type fakeS3 struct {
	mu    sync.Mutex
	state map[string]fakeObject
}

type fakeObject struct {
	body        []byte
	contentType string
}

func (f *fakeS3) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	if req.Method == http.MethodGet && req.URL.Query().Get("list-type") == "2" {
		return f.list(req), nil
	}
	switch req.Method {
	case http.MethodHead, http.MethodGet:
		obj, ok := f.state[key]
		if !ok {
			return respond(http.StatusNotFound, nil, nil), nil
		}
		h := http.Header{
			"Content-Length": {strconv.Itoa(len(obj.body))},
			"Content-Type":   {obj.contentType},
			"ETag":           {fmt.Sprintf("%q", fmt.Sprintf("etag-%d", len(obj.body)))},
			"Last-Modified":  {time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC).Format(http.TimeFormat)},
		}
		if req.Method == http.MethodHead {
			return respond(http.StatusOK, h, nil), nil
		}
		return respond(http.StatusOK, h, obj.body), nil
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if dec, ok := decodeChunked(body); ok {
			body = dec
		}
		f.state[key] = fakeObject{body: body, contentType: req.Header.Get("Content-Type")}
		return respond(http.StatusOK, http.Header{"ETag": {`"etag"`}}, nil), nil
	case http.MethodDelete:
		delete(f.state, key)
		return respond(http.StatusNoContent, nil, nil), nil
	}
	return respond(http.StatusNotImplemented, nil, nil), nil
}

func (f *fakeS3) list(req *http.Request) *http.Response {
	prefix := req.URL.Query().Get("prefix")
	token := req.URL.Query().Get("continuation-token")
	var keys []string
	for k := range f.state {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><ListBucketResult>`)
	page := keys
	if token == "" && len(keys) > 1 {
		page = keys[:1]
		b.WriteString("<IsTruncated>true</IsTruncated><NextContinuationToken>next</NextContinuationToken>")
	} else {
		if token != "" && len(keys) > 1 {
			page = keys[1:]
		}
		b.WriteString("<IsTruncated>false</IsTruncated>")
	}
	for _, k := range page {
		fmt.Fprintf(&b, "<Contents><Key>%s</Key><Size>%d</Size><LastModified>2025-03-10T12:00:00Z</LastModified></Contents>", k, len(f.state[k].body))
	}
	b.WriteString("</ListBucketResult>")
	return respond(http.StatusOK, http.Header{"Content-Type": {"application/xml"}}, []byte(b.String()))
}

func respond(code int, h http.Header, body []byte) *http.Response {
	if h == nil {
		h = http.Header{}
	}
	return &http.Response{StatusCode: code, Header: h, Body: io.NopCloser(bytes.NewReader(body)), ContentLength: int64(len(body))}
}

// decodeChunked unwraps a single-chunk aws-chunked upload body.
func decodeChunked(b []byte) ([]byte, bool) {
	parts := strings.Split(string(b), "\r\n")
	if len(parts) < 3 {
		return nil, false
	}
	sizeField, _, _ := strings.Cut(parts[0], ";")
	n, err := strconv.ParseInt(sizeField, 16, 64)
	if err != nil || n <= 0 || int64(len(parts[1])) != n {
		return nil, false
	}
	if !strings.HasPrefix(parts[2], "0") {
		return nil, false
	}
	return []byte(parts[1]), true
}

func newFakeStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(context.Background(), Config{
		Bucket:          "exports",
		Endpoint:        "https://fake.s3.local",
		PathStyle:       true,
		AccessKeyID:     "AKIA",
		SecretAccessKey: "SECRET",
		HTTPClient:      &http.Client{Transport: &fakeS3{state: map[string]fakeObject{}}},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return store
}

func TestStorePutGetListDelete(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(t)
	if store.Driver() != core.DriverS3 {
		t.Fatalf("expected s3 driver")
	}
	info, err := store.Put(ctx, "connects/connects_export_2025-03-10.csv", strings.NewReader("a,b\n"), core.PutOptions{ContentType: core.ContentTypeCSV})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "connects/connects_export_2025-03-10.csv" || info.ContentType != core.ContentTypeCSV || info.Size != 4 {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := store.Put(ctx, "connects/connects_export_2025-03-10.csv", strings.NewReader("a,b\nc,d\n"), core.PutOptions{ContentType: core.ContentTypeCSV}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	_, rc, err := store.Get(ctx, "connects/connects_export_2025-03-10.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "a,b\nc,d\n" {
		t.Fatalf("expected overwritten body, got %q", data)
	}
	if _, err := store.Put(ctx, "connects/connects_selection_2025-03-10.csv", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("put second: %v", err)
	}
	list, err := store.List(ctx, "connects/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "connects/connects_export_2025-03-10.csv" {
		t.Fatalf("expected two paged keys, got %+v", list)
	}
	url, err := store.URL(ctx, "connects/connects_export_2025-03-10.csv", 0)
	if err != nil || !strings.Contains(url, "X-Amz-Signature") {
		t.Fatalf("presign: %v %s", err, url)
	}
	if ok, err := store.Delete(ctx, "connects/connects_export_2025-03-10.csv"); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if ok, err := store.Delete(ctx, "connects/connects_export_2025-03-10.csv"); err != nil || ok {
		t.Fatalf("second delete should report false: %v %v", ok, err)
	}
}

func TestStoreMissingKey(t *testing.T) {
	store := newFakeStore(t)
	if _, _, err := store.Get(context.Background(), "nope.csv"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error for missing bucket")
	}
}
