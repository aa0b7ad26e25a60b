package storage_test

import (
	"context"
	"testing"

	"github.com/agentloop/ralph/internal/adapter/gateway/storage"
	"github.com/agentloop/ralph/internal/application/port/output"
)

func TestMockArchiveGateway_ArchiveAndList(t *testing.T) {
	gateway := storage.NewMockArchiveGateway()
	ctx := context.Background()

	record, err := gateway.ArchiveTranscript(ctx, output.ArchiveTranscriptRequest{
		RunID:      "run-001",
		ChangeID:   "add-auth",
		Iteration:  1,
		Transcript: []byte("output"),
	})
	if err != nil {
		t.Fatalf("ArchiveTranscript failed: %v", err)
	}
	if record.StoragePath == "" {
		t.Error("expected non-empty storage path")
	}
	if gateway.RecordCount() != 1 {
		t.Errorf("expected 1 record, got %d", gateway.RecordCount())
	}

	body, ok := gateway.TranscriptFor(record)
	if !ok {
		t.Fatal("expected stored transcript body")
	}
	if string(body) != "output" {
		t.Errorf("expected transcript %q, got %q", "output", string(body))
	}

	records, err := gateway.ListTranscripts(ctx, "add-auth")
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].RunID != "run-001" {
		t.Errorf("expected run-001, got %s", records[0].RunID)
	}
}

func TestMockArchiveGateway_ListFiltersByChange(t *testing.T) {
	gateway := storage.NewMockArchiveGateway()
	ctx := context.Background()

	for _, req := range []output.ArchiveTranscriptRequest{
		{RunID: "run-a", ChangeID: "add-auth", Iteration: 2, Transcript: []byte("a2")},
		{RunID: "run-a", ChangeID: "add-auth", Iteration: 1, Transcript: []byte("a1")},
		{RunID: "run-a", ChangeID: "other-change", Iteration: 1, Transcript: []byte("x1")},
	} {
		if _, err := gateway.ArchiveTranscript(ctx, req); err != nil {
			t.Fatalf("ArchiveTranscript failed: %v", err)
		}
	}

	records, err := gateway.ListTranscripts(ctx, "add-auth")
	if err != nil {
		t.Fatalf("ListTranscripts failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Iteration != 1 || records[1].Iteration != 2 {
		t.Errorf("expected iterations in order 1,2, got %d,%d", records[0].Iteration, records[1].Iteration)
	}
}
