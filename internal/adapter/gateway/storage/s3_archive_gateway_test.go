package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentloop/ralph/internal/application/port/output"
)

func TestS3ArchiveGateway_ArchiveTranscript(t *testing.T) {
	// Setup mock S3 client
	mockClient := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(mockClient, "test-bucket", "test-prefix")

	ctx := context.Background()

	transcript := []byte("# Iteration 1\n\nharness output here")
	req := output.ArchiveTranscriptRequest{
		RunID:        "run-001",
		ChangeID:     "add-auth",
		Iteration:    1,
		Transcript:   transcript,
		ExitCode:     0,
		PromiseFound: true,
		Duration:     1500 * time.Millisecond,
	}

	record, err := gateway.ArchiveTranscript(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "run-001", record.RunID)
	assert.Equal(t, "add-auth", record.ChangeID)
	assert.Equal(t, 1, record.Iteration)
	assert.Equal(t, int64(len(transcript)), record.SizeBytes)
	assert.Equal(t, int64(1500), record.DurationMs)
	assert.True(t, record.PromiseFound)
	assert.NotZero(t, record.UploadedAt)

	// Verify S3 storage (2 objects: transcript + metadata.json)
	assert.Equal(t, 2, mockClient.GetObjectCount())

	// Verify storage path format
	expectedPath := "s3://test-bucket/test-prefix/transcripts/add-auth/run-001/0001/transcript.md"
	assert.Equal(t, expectedPath, record.StoragePath)

	// Verify transcript body landed at the expected key
	body, ok := mockClient.GetObjectForTest("test-prefix/transcripts/add-auth/run-001/0001/transcript.md")
	require.True(t, ok)
	assert.Equal(t, transcript, body)
}

func TestS3ArchiveGateway_ArchiveTranscript_Validation(t *testing.T) {
	mockClient := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(mockClient, "test-bucket", "")

	ctx := context.Background()

	_, err := gateway.ArchiveTranscript(ctx, output.ArchiveTranscriptRequest{
		RunID:     "run-001",
		Iteration: 1,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "change id is required")

	_, err = gateway.ArchiveTranscript(ctx, output.ArchiveTranscriptRequest{
		ChangeID:  "add-auth",
		Iteration: 1,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "run id is required")

	// Nothing should have been uploaded
	assert.Equal(t, 0, mockClient.GetObjectCount())
}

func TestS3ArchiveGateway_MetadataRoundTrip(t *testing.T) {
	// Setup mock S3 client
	mockClient := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(mockClient, "test-bucket", "ralph/prod")

	ctx := context.Background()

	req := output.ArchiveTranscriptRequest{
		RunID:        "run-002",
		ChangeID:     "fix-parser",
		Iteration:    3,
		Transcript:   []byte("output"),
		ExitCode:     1,
		PromiseFound: false,
		Duration:     2 * time.Second,
	}

	record, err := gateway.ArchiveTranscript(ctx, req)
	require.NoError(t, err)

	// The stored metadata.json must decode back to the returned record
	metadataJSON, ok := mockClient.GetObjectForTest("ralph/prod/transcripts/fix-parser/run-002/0003/metadata.json")
	require.True(t, ok)

	var stored output.TranscriptRecord
	require.NoError(t, json.Unmarshal(metadataJSON, &stored))
	assert.Equal(t, record.RunID, stored.RunID)
	assert.Equal(t, record.ChangeID, stored.ChangeID)
	assert.Equal(t, record.Iteration, stored.Iteration)
	assert.Equal(t, record.ExitCode, stored.ExitCode)
	assert.Equal(t, record.PromiseFound, stored.PromiseFound)
	assert.Equal(t, record.DurationMs, stored.DurationMs)
}

func TestS3ArchiveGateway_ListTranscripts(t *testing.T) {
	// Setup mock S3 client
	mockClient := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(mockClient, "test-bucket", "test-prefix")

	ctx := context.Background()

	// Archive iterations out of order across two runs
	for _, req := range []output.ArchiveTranscriptRequest{
		{RunID: "run-b", ChangeID: "add-auth", Iteration: 2, Transcript: []byte("b2")},
		{RunID: "run-a", ChangeID: "add-auth", Iteration: 2, Transcript: []byte("a2")},
		{RunID: "run-a", ChangeID: "add-auth", Iteration: 1, Transcript: []byte("a1")},
		{RunID: "run-a", ChangeID: "other-change", Iteration: 1, Transcript: []byte("x1")},
	} {
		_, err := gateway.ArchiveTranscript(ctx, req)
		require.NoError(t, err)
	}

	records, err := gateway.ListTranscripts(ctx, "add-auth")
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Ordered by run ID, then iteration
	assert.Equal(t, "run-a", records[0].RunID)
	assert.Equal(t, 1, records[0].Iteration)
	assert.Equal(t, "run-a", records[1].RunID)
	assert.Equal(t, 2, records[1].Iteration)
	assert.Equal(t, "run-b", records[2].RunID)
	assert.Equal(t, 2, records[2].Iteration)

	// All records belong to the requested change
	for _, record := range records {
		assert.Equal(t, "add-auth", record.ChangeID)
	}
}

func TestS3ArchiveGateway_ListTranscripts_EmptyChange(t *testing.T) {
	// Setup mock S3 client
	mockClient := NewMockS3Client()
	gateway := NewS3ArchiveGatewayWithClient(mockClient, "test-bucket", "test-prefix")

	ctx := context.Background()

	records, err := gateway.ListTranscripts(ctx, "non-existent-change")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestS3ArchiveGateway_BuildKey(t *testing.T) {
	gateway := NewS3ArchiveGatewayWithClient(nil, "test-bucket", "prefix")

	// Test key building
	key := gateway.buildKey("transcripts", "add-auth", "run-001", "0001", "transcript.md")
	expected := "prefix/transcripts/add-auth/run-001/0001/transcript.md"
	assert.Equal(t, expected, key)

	// Test without prefix
	gatewayNoPrefix := NewS3ArchiveGatewayWithClient(nil, "test-bucket", "")
	keyNoPrefix := gatewayNoPrefix.buildKey("transcripts", "add-auth")
	expectedNoPrefix := "transcripts/add-auth"
	assert.Equal(t, expectedNoPrefix, keyNoPrefix)
}
