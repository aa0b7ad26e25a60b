package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/agentloop/ralph/internal/application/port/output"
)

// LocalArchiveGateway implements ArchiveGateway using the local filesystem.
// It is the default when no S3 bucket is configured.
// Directory structure: <baseDir>/archive/<changeID>/<runID>/<iteration>/
//   - transcript.md: prompt plus streamed harness output
//   - metadata.json: TranscriptRecord
type LocalArchiveGateway struct {
	baseDir string // e.g. .ralph
}

// NewLocalArchiveGateway creates a new local filesystem-based archive gateway
func NewLocalArchiveGateway(baseDir string) (*LocalArchiveGateway, error) {
	archiveDir := filepath.Join(baseDir, "archive")
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	return &LocalArchiveGateway{
		baseDir: baseDir,
	}, nil
}

// ArchiveTranscript persists one iteration transcript
func (g *LocalArchiveGateway) ArchiveTranscript(ctx context.Context, req output.ArchiveTranscriptRequest) (*output.TranscriptRecord, error) {
	if req.ChangeID == "" {
		return nil, fmt.Errorf("change id is required")
	}
	if req.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	iterDir := fmt.Sprintf("%04d", req.Iteration)
	transcriptDir := filepath.Join(g.baseDir, "archive", req.ChangeID, req.RunID, iterDir)
	if err := os.MkdirAll(transcriptDir, 0755); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}

	contentPath := filepath.Join(transcriptDir, "transcript.md")
	if err := os.WriteFile(contentPath, req.Transcript, 0644); err != nil {
		return nil, fmt.Errorf("write transcript: %w", err)
	}

	record := output.TranscriptRecord{
		RunID:        req.RunID,
		ChangeID:     req.ChangeID,
		Iteration:    req.Iteration,
		StoragePath:  contentPath,
		ExitCode:     req.ExitCode,
		PromiseFound: req.PromiseFound,
		DurationMs:   req.Duration.Milliseconds(),
		SizeBytes:    int64(len(req.Transcript)),
		UploadedAt:   time.Now().UTC(),
	}

	metadataPath := filepath.Join(transcriptDir, "metadata.json")
	metadataJSON, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal transcript record: %w", err)
	}
	if err := os.WriteFile(metadataPath, metadataJSON, 0644); err != nil {
		return nil, fmt.Errorf("write transcript record: %w", err)
	}

	return &record, nil
}

// ListTranscripts lists archived transcripts for a change,
// ordered by run ID then iteration
func (g *LocalArchiveGateway) ListTranscripts(ctx context.Context, changeID string) ([]*output.TranscriptRecord, error) {
	changeDir := filepath.Join(g.baseDir, "archive", changeID)

	if _, err := os.Stat(changeDir); os.IsNotExist(err) {
		return []*output.TranscriptRecord{}, nil // Nothing archived for this change
	}

	var records []*output.TranscriptRecord
	err := filepath.WalkDir(changeDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != "metadata.json" {
			return nil
		}

		metadataJSON, err := os.ReadFile(path)
		if err != nil {
			return nil // Skip unreadable records
		}

		var record output.TranscriptRecord
		if err := json.Unmarshal(metadataJSON, &record); err != nil {
			return nil // Skip invalid records
		}

		records = append(records, &record)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk archive directory: %w", err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RunID != records[j].RunID {
			return records[i].RunID < records[j].RunID
		}
		return records[i].Iteration < records[j].Iteration
	})

	return records, nil
}
