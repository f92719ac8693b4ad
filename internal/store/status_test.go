package store

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"
)

func TestMemoryStatusRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStatus(time.Hour)
	start := time.Now()
	want := Status{Status: StateProcessing, Progress: 30, Message: "simulated", Start: &start}
	if err := m.Set(ctx, "j1", want); err != nil {
		t.Fatal(err)
	}
	got, ok, err := m.Get(ctx, "j1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Progress != 30 || got.Status != StateProcessing {
		t.Fatalf("got %+v", got)
	}
	if _, ok, _ := m.Get(ctx, "nope"); ok {
		t.Fatal("unknown job found")
	}
}

func TestMemoryStatusExpiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStatus(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	_ = m.Set(ctx, "j1", Status{Status: StateSuccess, Archive: "/tmp/a.zip"})
	_ = m.SetDigestJob(ctx, "abc", "j1")
	if id, err := m.GetJobByDigest(ctx, "abc"); err != nil || id != "j1" {
		t.Fatalf("digest lookup = %q, %v", id, err)
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "j1"); ok {
		t.Fatal("expired job still visible")
	}
	swept := m.Sweep()
	if swept["j1"].Archive != "/tmp/a.zip" {
		t.Fatalf("swept = %+v", swept)
	}
	if _, err := m.GetJobByDigest(ctx, "abc"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestStatusDone(t *testing.T) {
	for state, want := range map[string]bool{
		StateQueued: false, StateProcessing: false, StateSuccess: true, StateFailed: true,
	} {
		if got := (Status{Status: state}).Done(); got != want {
			t.Errorf("%s: Done() = %v", state, got)
		}
	}
}

func TestDecodeHash(t *testing.T) {
	st := decodeHash(map[string]string{
		"status":   "success",
		"progress": "100",
		"archive":  "/out/a.zip",
		"end":      "2024-03-09T14:05:07Z",
		"metadata": `{"pages":12}`,
	})
	if st.Progress != 100 || st.Archive != "/out/a.zip" || st.End == nil {
		t.Fatalf("got %+v", st)
	}
	if st.Metadata["pages"].(float64) != 12 {
		t.Fatalf("metadata = %v", st.Metadata)
	}
}

func TestRedisStatus(t *testing.T) {
	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}
	ctx := context.Background()
	s, err := NewRedisStatus(ctx, url, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Set(ctx, "test-job", Status{Status: StateQueued, Metadata: map[string]any{"k": "v"}}); err != nil {
		t.Fatal(err)
	}
	got, ok, err := s.Get(ctx, "test-job")
	if err != nil || !ok || got.Status != StateQueued || got.Metadata["k"] != "v" {
		t.Fatalf("got %+v ok=%v err=%v", got, ok, err)
	}
	if _, err := s.GetJobByDigest(ctx, "missing-digest"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}
