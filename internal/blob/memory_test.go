package blob

import (
	"bytes"
	"context"
	"io"
	"testing"
)

func TestMemory_CreateOnlyAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if s.Driver() != DriverMemory {
		t.Fatalf("driver: %s", s.Driver())
	}
	info, err := s.Put(ctx, "a/b", bytes.NewReader([]byte("payload")), PutOptions{ContentType: "text/plain"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 7 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := s.Put(ctx, "a/b", bytes.NewReader(nil), PutOptions{}); err == nil {
		t.Fatalf("duplicate put must fail")
	}
	_, rc, err := s.Get(ctx, "a/b")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(b) != "payload" {
		t.Fatalf("payload mismatch: %q", b)
	}
	if _, err := s.Head(ctx, "missing"); err == nil {
		t.Fatalf("head of missing must fail")
	}
}

func TestMemory_ListOrderedByKey(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	for _, key := range []string{"runs/z", "runs/a", "other/x"} {
		if _, err := s.Put(ctx, key, bytes.NewReader([]byte("1")), PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", key, err)
		}
	}
	list, err := s.List(ctx, "runs/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Key != "runs/a" || list[1].Key != "runs/z" {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestMemory_DeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	if _, err := s.Put(ctx, "k", bytes.NewReader([]byte("1")), PutOptions{}); err != nil {
		t.Fatalf("put: %v", err)
	}
	ok, err := s.Delete(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	ok, err = s.Delete(ctx, "k")
	if err != nil || ok {
		t.Fatalf("second delete should be false")
	}
}
