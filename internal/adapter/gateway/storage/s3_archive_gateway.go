package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/agentloop/ralph/internal/application/port/output"
)

// S3ArchiveGateway implements ArchiveGateway using AWS S3
// Bucket structure: s3://<bucket>/<prefix>/transcripts/<changeID>/<runID>/<iteration>/
//   - transcript.md: prompt plus streamed harness output
//   - metadata.json: TranscriptRecord for querying without downloads
type S3ArchiveGateway struct {
	client S3API // Use interface for testability
	bucket string
	prefix string // Optional prefix for all keys (e.g., "ralph/prod")
}

// S3Config holds S3 archive gateway configuration
type S3Config struct {
	Bucket string // S3 bucket name
	Prefix string // Optional key prefix
	Region string // AWS region (optional, uses default if empty)
}

// NewS3ArchiveGateway creates a new S3-based archive gateway
func NewS3ArchiveGateway(cfg S3Config) (*S3ArchiveGateway, error) {
	awsCfg, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return &S3ArchiveGateway{
		client: s3.NewFromConfig(awsCfg),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

// NewS3ArchiveGatewayWithClient creates a gateway with a custom S3 client.
// This is primarily used for testing with mock S3 clients.
func NewS3ArchiveGatewayWithClient(client S3API, bucket, prefix string) *S3ArchiveGateway {
	return &S3ArchiveGateway{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}
}

// ArchiveTranscript persists one iteration transcript
func (g *S3ArchiveGateway) ArchiveTranscript(ctx context.Context, req output.ArchiveTranscriptRequest) (*output.TranscriptRecord, error) {
	if req.ChangeID == "" {
		return nil, fmt.Errorf("change id is required")
	}
	if req.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	iterDir := fmt.Sprintf("%04d", req.Iteration)
	contentKey := g.buildKey("transcripts", req.ChangeID, req.RunID, iterDir, "transcript.md")

	_, err := g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(contentKey),
		Body:        bytes.NewReader(req.Transcript),
		ContentType: aws.String("text/markdown"),
		Metadata: map[string]string{
			"run-id":    req.RunID,
			"change-id": req.ChangeID,
			"iteration": iterDir,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload transcript to S3: %w", err)
	}

	record := output.TranscriptRecord{
		RunID:        req.RunID,
		ChangeID:     req.ChangeID,
		Iteration:    req.Iteration,
		StoragePath:  fmt.Sprintf("s3://%s/%s", g.bucket, contentKey),
		ExitCode:     req.ExitCode,
		PromiseFound: req.PromiseFound,
		DurationMs:   req.Duration.Milliseconds(),
		SizeBytes:    int64(len(req.Transcript)),
		UploadedAt:   time.Now().UTC(),
	}

	// Store the record alongside the transcript for listing without downloads
	metadataKey := g.buildKey("transcripts", req.ChangeID, req.RunID, iterDir, "metadata.json")
	metadataJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal transcript record: %w", err)
	}

	_, err = g.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(metadataKey),
		Body:        bytes.NewReader(metadataJSON),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("upload transcript record to S3: %w", err)
	}

	return &record, nil
}

// ListTranscripts lists archived transcripts for a change,
// ordered by run ID then iteration
func (g *S3ArchiveGateway) ListTranscripts(ctx context.Context, changeID string) ([]*output.TranscriptRecord, error) {
	prefix := g.buildKey("transcripts", changeID) + "/"

	listOutput, err := g.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(g.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list S3 objects: %w", err)
	}

	var records []*output.TranscriptRecord
	for _, obj := range listOutput.Contents {
		key := aws.ToString(obj.Key)
		if !strings.HasSuffix(key, "metadata.json") {
			continue
		}

		metadataObj, err := g.client.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(g.bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			// Skip records with download errors
			continue
		}

		metadataJSON, err := io.ReadAll(metadataObj.Body)
		metadataObj.Body.Close()
		if err != nil {
			continue
		}

		var record output.TranscriptRecord
		if err := json.Unmarshal(metadataJSON, &record); err != nil {
			continue
		}

		records = append(records, &record)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].RunID != records[j].RunID {
			return records[i].RunID < records[j].RunID
		}
		return records[i].Iteration < records[j].Iteration
	})

	return records, nil
}

// buildKey builds an S3 key with the configured prefix
func (g *S3ArchiveGateway) buildKey(parts ...string) string {
	if g.prefix != "" {
		parts = append([]string{g.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}
