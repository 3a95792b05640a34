package blob

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
)

func newTempFS(t *testing.T) *Filesystem {
	t.Helper()
	fs, err := NewFilesystem(t.TempDir())
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return fs
}

func TestFilesystem_PutGetHeadListDelete(t *testing.T) {
	ctx := context.Background()
	fs := newTempFS(t)
	info, err := fs.Put(ctx, "run1/train/shard-00000.jsonl", bytes.NewReader([]byte("hello")), PutOptions{ContentType: "application/jsonl", Metadata: map[string]string{"split": "train"}})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Key != "run1/train/shard-00000.jsonl" || info.Size != 5 {
		t.Fatalf("unexpected info %+v", info)
	}
	// create-only: duplicate must fail
	if _, err := fs.Put(ctx, "run1/train/shard-00000.jsonl", bytes.NewReader([]byte("x")), PutOptions{}); err == nil {
		t.Fatalf("expected duplicate failure")
	}
	h, err := fs.Head(ctx, "run1/train/shard-00000.jsonl")
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	if h.ETag == "" || h.ETag != info.ETag {
		t.Fatalf("etag mismatch: %q vs %q", h.ETag, info.ETag)
	}
	g, rc, err := fs.Get(ctx, "run1/train/shard-00000.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	if err := rc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if string(b) != "hello" || g.ETag != h.ETag {
		t.Fatalf("unexpected get result")
	}
	list, err := fs.List(ctx, "run1/train/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Key != "run1/train/shard-00000.jsonl" {
		t.Fatalf("unexpected list %+v", list)
	}
	url, err := fs.PresignURL(ctx, "run1/train/shard-00000.jsonl", SignedURLOptions{})
	if err != nil || url == "" {
		t.Fatalf("presign: %v %q", err, url)
	}
	ok, err := fs.Delete(ctx, "run1/train/shard-00000.jsonl")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = fs.Delete(ctx, "run1/train/shard-00000.jsonl")
	if err != nil || ok {
		t.Fatalf("second delete should report absent")
	}
}

func TestFilesystem_PathTraversal(t *testing.T) {
	ctx := context.Background()
	fs := newTempFS(t)
	if _, err := fs.Put(ctx, "../escape.txt", bytes.NewReader([]byte("x")), PutOptions{}); err == nil {
		t.Fatalf("expected traversal error")
	}
	if _, err := fs.Put(ctx, "/abs.txt", bytes.NewReader([]byte("x")), PutOptions{}); err == nil {
		t.Fatalf("expected absolute error")
	}
	if _, err := fs.Put(ctx, "  ", bytes.NewReader([]byte("x")), PutOptions{}); err == nil {
		t.Fatalf("expected empty key error")
	}
}

func TestFilesystem_MetadataSidecar(t *testing.T) {
	ctx := context.Background()
	fs := newTempFS(t)
	if _, err := fs.Put(ctx, "vocab/vocabulary.json", bytes.NewReader([]byte("{}")), PutOptions{ContentType: "application/json", Metadata: map[string]string{"checksum": "abc"}}); err != nil {
		t.Fatalf("put: %v", err)
	}
	_, metaPath, err := fs.pathFor("vocab/vocabulary.json")
	if err != nil {
		t.Fatalf("pathFor: %v", err)
	}
	b, err := os.ReadFile(metaPath)
	if err != nil {
		t.Fatalf("read meta: %v", err)
	}
	if !bytes.Contains(b, []byte("application/json")) || !bytes.Contains(b, []byte("checksum")) {
		t.Fatalf("sidecar missing fields: %s", b)
	}
}

func TestFilesystem_PresignRejectsNonGET(t *testing.T) {
	fs := newTempFS(t)
	if _, err := fs.PresignURL(context.Background(), "k", SignedURLOptions{Method: "PUT"}); err != ErrUnsupported {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
}
