package output

import (
	"context"
	"time"
)

// ArchiveGateway is the interface for transcript archive storage.
// Archiving is optional; a loop runs fine with no gateway configured.
type ArchiveGateway interface {
	// ArchiveTranscript persists one iteration transcript
	ArchiveTranscript(ctx context.Context, req ArchiveTranscriptRequest) (*TranscriptRecord, error)

	// ListTranscripts lists archived transcripts for a change
	ListTranscripts(ctx context.Context, changeID string) ([]*TranscriptRecord, error)
}

// ArchiveTranscriptRequest represents one iteration transcript to archive
type ArchiveTranscriptRequest struct {
	RunID        string        // Loop invocation ID
	ChangeID     string        // Targeted change
	Iteration    int           // Iteration number (1-based)
	Transcript   []byte        // Prompt plus streamed harness output
	ExitCode     int           // Harness exit code
	PromiseFound bool          // Whether a completion promise was detected
	Duration     time.Duration // Harness run duration
}

// TranscriptRecord describes one archived transcript
type TranscriptRecord struct {
	RunID        string    `json:"runId"`
	ChangeID     string    `json:"changeId"`
	Iteration    int       `json:"iteration"`
	StoragePath  string    `json:"storagePath"` // e.g. s3://bucket/key
	ExitCode     int       `json:"exitCode"`
	PromiseFound bool      `json:"promiseFound"`
	DurationMs   int64     `json:"durationMs"`
	SizeBytes    int64     `json:"sizeBytes"`
	UploadedAt   time.Time `json:"uploadedAt"`
}
