package ingest

import (
	"reflect"
	"testing"
)

func TestSplitGap(t *testing.T) {
	got, err := SplitGap(99, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitGapShortFinalChunk(t *testing.T) {
	// A 2000 block gap with 799 block chunks resolves in exactly three
	// fetches, the last one truncated to the target.
	got, err := SplitGap(1000, 3000, 799)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 1001, To: 1799},
		{From: 1800, To: 2598},
		{From: 2599, To: 3000},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitGapEmpty(t *testing.T) {
	got, err := SplitGap(10, 10, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no chunks, got %+v", got)
	}
}

func TestSplitGapZeroChunkSize(t *testing.T) {
	if _, err := SplitGap(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
}
