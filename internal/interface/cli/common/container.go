package common

import (
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/agentloop/ralph/internal/adapter/gateway/storage"
	"github.com/agentloop/ralph/internal/app/config"
	"github.com/agentloop/ralph/internal/application/port/output"
	"github.com/agentloop/ralph/internal/domain/repository"
	"github.com/agentloop/ralph/internal/infra/persistence/sqlite"
	"github.com/agentloop/ralph/internal/infra/repository/audit"
)

// Container wires the storage-backed collaborators shared by commands:
// the work item database, the audit trail, and the transcript archive.
type Container struct {
	db        *sql.DB
	workItems repository.WorkItemRepository
	tasks     repository.TaskRepository
	auditSink repository.AuditSink
	archive   output.ArchiveGateway
}

// InitializeContainer opens the work item database, applies pending
// schema migrations, and builds the repositories plus the audit and
// archive gateways from the loaded configuration.
func InitializeContainer(cfg config.Config) (*Container, error) {
	dbPath := cfg.DBPath()
	if dbPath == "" {
		dbPath = filepath.Join(cfg.Home(), "ralph.db")
	}

	db, err := sqlite.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := sqlite.NewMigrator(db).Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	auditPath := cfg.AuditLogPath()
	if auditPath == "" {
		auditPath = filepath.Join(cfg.Home(), "audit.jsonl")
	}

	archive, err := buildArchiveGateway(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Container{
		db:        db,
		workItems: sqlite.NewWorkItemRepository(db),
		tasks:     sqlite.NewTaskRepository(db),
		auditSink: audit.NewFileAuditSink(afero.NewOsFs(), auditPath),
		archive:   archive,
	}, nil
}

// buildArchiveGateway selects S3 when a bucket is configured and the
// local filesystem otherwise. Transcript archiving is always on; only
// the destination varies.
func buildArchiveGateway(cfg config.Config) (output.ArchiveGateway, error) {
	if bucket := cfg.ArchiveBucket(); bucket != "" {
		gw, err := storage.NewS3ArchiveGateway(storage.S3Config{
			Bucket: bucket,
			Prefix: cfg.ArchivePrefix(),
			Region: cfg.ArchiveRegion(),
		})
		if err != nil {
			return nil, fmt.Errorf("configure S3 archive: %w", err)
		}
		return gw, nil
	}

	gw, err := storage.NewLocalArchiveGateway(cfg.Home())
	if err != nil {
		return nil, fmt.Errorf("configure local archive: %w", err)
	}
	return gw, nil
}

// GetWorkItemRepository returns the work item repository
func (c *Container) GetWorkItemRepository() repository.WorkItemRepository {
	return c.workItems
}

// GetTaskRepository returns the task repository
func (c *Container) GetTaskRepository() repository.TaskRepository {
	return c.tasks
}

// GetAuditSink returns the audit trail sink
func (c *Container) GetAuditSink() repository.AuditSink {
	return c.auditSink
}

// GetArchiveGateway returns the transcript archive gateway
func (c *Container) GetArchiveGateway() output.ArchiveGateway {
	return c.archive
}

// Close releases the database handle.
func (c *Container) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
