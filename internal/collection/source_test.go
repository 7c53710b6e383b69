package collection

import (
	"context"
	"errors"
	"testing"

	"pkt.systems/threadpager/schema"
)

func pageIDs(entries []schema.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e.ID)
	}
	return out
}

func TestMemorySourcePages(t *testing.T) {
	src := NewMemorySource()
	src.Put("report1", entry("e3", 3), entry("e1", 1), entry("e2", 2), entry("e4", 4), entry("e5", 5))
	cases := []struct {
		name string
		req  schema.FetchRequest
		want []string
	}{
		{name: "newest page", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder}, want: []string{"e4", "e5"}},
		{name: "older", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder, BoundaryID: "e4"}, want: []string{"e2", "e3"}},
		{name: "older edge", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder, BoundaryID: "e2"}, want: []string{"e1"}},
		{name: "oldest", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder, BoundaryID: "e1"}, want: []string{}},
		{name: "newer", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionNewer, BoundaryID: "e1"}, want: []string{"e2", "e3"}},
		{name: "newest", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionNewer, BoundaryID: "e5"}, want: []string{}},
		{name: "unknown boundary", req: schema.FetchRequest{Stream: "report1", Direction: schema.DirectionNewer, BoundaryID: "zz"}, want: []string{"e4", "e5"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := src.LoadPage(context.Background(), tc.req, 2)
			if err != nil {
				t.Fatalf("load page: %v", err)
			}
			ids := pageIDs(got)
			if len(ids) != len(tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, ids)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("expected %v, got %v", tc.want, ids)
				}
			}
		})
	}
}

func TestMemorySourceUnlimited(t *testing.T) {
	src := NewMemorySource()
	src.Put("report1", entry("e1", 1), entry("e2", 2), entry("e3", 3))
	got, err := src.LoadPage(context.Background(), schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder, BoundaryID: "e3"}, 0)
	if err != nil || len(got) != 2 {
		t.Fatalf("expected two entries, got %v err=%v", pageIDs(got), err)
	}
}

func TestMemorySourceFailures(t *testing.T) {
	src := NewMemorySource()
	src.Put("report1", entry("e1", 1))
	boom := errors.New("boom")
	src.FailNext("report1", schema.DirectionOlder, boom)
	req := schema.FetchRequest{Stream: "report1", Direction: schema.DirectionOlder}
	if _, err := src.LoadPage(context.Background(), req, 2); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := src.LoadPage(context.Background(), req, 2); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if _, err := src.LoadPage(context.Background(), schema.FetchRequest{Stream: "other"}, 2); !errors.Is(err, schema.ErrStreamNotFound) {
		t.Fatalf("expected stream not found, got %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.LoadPage(ctx, req, 2); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
	if src.Calls() != 3 {
		t.Fatalf("expected 3 calls, got %d", src.Calls())
	}
}
