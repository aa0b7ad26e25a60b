package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/agentloop/ralph/internal/application/port/output"
)

// MockArchiveGateway is an in-memory implementation of ArchiveGateway
// for tests that need to observe what a loop archived.
type MockArchiveGateway struct {
	mu      sync.RWMutex
	records []*output.TranscriptRecord
	bodies  map[string][]byte // StoragePath -> transcript
}

// NewMockArchiveGateway creates a new in-memory archive gateway
func NewMockArchiveGateway() *MockArchiveGateway {
	return &MockArchiveGateway{
		bodies: make(map[string][]byte),
	}
}

// ArchiveTranscript stores one transcript in memory
func (g *MockArchiveGateway) ArchiveTranscript(ctx context.Context, req output.ArchiveTranscriptRequest) (*output.TranscriptRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	record := &output.TranscriptRecord{
		RunID:        req.RunID,
		ChangeID:     req.ChangeID,
		Iteration:    req.Iteration,
		StoragePath:  "mock://transcripts/" + req.ChangeID + "/" + req.RunID,
		ExitCode:     req.ExitCode,
		PromiseFound: req.PromiseFound,
		DurationMs:   req.Duration.Milliseconds(),
		SizeBytes:    int64(len(req.Transcript)),
		UploadedAt:   time.Now().UTC(),
	}

	g.records = append(g.records, record)
	g.bodies[record.StoragePath] = req.Transcript

	return record, nil
}

// ListTranscripts lists stored transcripts for a change,
// ordered by run ID then iteration
func (g *MockArchiveGateway) ListTranscripts(ctx context.Context, changeID string) ([]*output.TranscriptRecord, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var records []*output.TranscriptRecord
	for _, record := range g.records {
		if record.ChangeID == changeID {
			records = append(records, record)
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RunID != records[j].RunID {
			return records[i].RunID < records[j].RunID
		}
		return records[i].Iteration < records[j].Iteration
	})

	return records, nil
}

// RecordCount returns the number of stored transcripts (for testing)
func (g *MockArchiveGateway) RecordCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.records)
}

// TranscriptFor returns the stored transcript body (for testing)
func (g *MockArchiveGateway) TranscriptFor(record *output.TranscriptRecord) ([]byte, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	body, ok := g.bodies[record.StoragePath]
	return body, ok
}
