package config

import "time"

// Config provides read-only access to application configuration.
// This interface abstracts the configuration source (JSON or defaults)
// and keeps the loop and CLI layers off the loading details.
type Config interface {
	// Core settings
	Home() string    // Base directory for Ralph state (RALPH_HOME)
	Harness() string // Default harness name (opencode/claude/codex/copilot/stub)
	Model() string   // Default model override passed to the harness

	// Loop settings
	CompletionPromise() string        // Token accepted inside <promise>...</promise>
	MinIterations() int               // Iterations required before a promise is honored
	MaxIterations() int               // Iteration ceiling; 0 means unlimited
	InactivityTimeoutSec() int        // Watchdog timeout in seconds
	InactivityTimeout() time.Duration // Watchdog timeout as Duration
	ErrorThreshold() int              // Non-retriable failures tolerated before aborting
	ExitOnError() bool                // Abort on the first non-retriable failure
	AllowAll() bool                   // Auto-approve harness tool use
	NoCommit() bool                   // Skip the per-iteration git commit
	SkipValidation() bool             // Trust completion promises without the gate

	// Worktree settings
	WorktreesEnabled() bool // Resolve per-change git worktrees
	WorktreesDir() string   // Directory worktrees are expected under

	// Storage
	DBPath() string       // Work item database; empty derives <home>/ralph.db
	AuditLogPath() string // Audit sink; empty derives <home>/audit.jsonl

	// Transcript archive (disabled when bucket is empty)
	ArchiveBucket() string
	ArchivePrefix() string
	ArchiveRegion() string

	// Logging
	StderrLevel() string // Minimum stderr log level (debug/info/warn/error)

	// Metadata
	ConfigSource() string // "json" or "default"
	SettingPath() string  // Path to setting.json if loaded from file
}

// AppConfig is the concrete implementation of Config.
// Values are loaded and merged by the infrastructure layer.
type AppConfig struct {
	home    string
	harness string
	model   string

	completionPromise    string
	minIterations        int
	maxIterations        int
	inactivityTimeoutSec int
	errorThreshold       int
	exitOnError          bool
	allowAll             bool
	noCommit             bool
	skipValidation       bool

	worktreesEnabled bool
	worktreesDir     string

	dbPath       string
	auditLogPath string

	archiveBucket string
	archivePrefix string
	archiveRegion string

	stderrLevel string

	configSource string
	settingPath  string
}

// Home returns the base directory for Ralph state
func (c *AppConfig) Home() string {
	return c.home
}

// Harness returns the default harness name
func (c *AppConfig) Harness() string {
	return c.harness
}

// Model returns the default model override
func (c *AppConfig) Model() string {
	return c.model
}

// CompletionPromise returns the accepted completion token
func (c *AppConfig) CompletionPromise() string {
	return c.completionPromise
}

// MinIterations returns the minimum iterations before a promise is honored
func (c *AppConfig) MinIterations() int {
	return c.minIterations
}

// MaxIterations returns the iteration ceiling (0 = unlimited)
func (c *AppConfig) MaxIterations() int {
	return c.maxIterations
}

// InactivityTimeoutSec returns the watchdog timeout in seconds
func (c *AppConfig) InactivityTimeoutSec() int {
	return c.inactivityTimeoutSec
}

// InactivityTimeout returns the watchdog timeout as a Duration
func (c *AppConfig) InactivityTimeout() time.Duration {
	return time.Duration(c.inactivityTimeoutSec) * time.Second
}

// ErrorThreshold returns the tolerated non-retriable failure count
func (c *AppConfig) ErrorThreshold() int {
	return c.errorThreshold
}

// ExitOnError returns whether the loop aborts on the first failure
func (c *AppConfig) ExitOnError() bool {
	return c.exitOnError
}

// AllowAll returns whether harness tool use is auto-approved
func (c *AppConfig) AllowAll() bool {
	return c.allowAll
}

// NoCommit returns whether the per-iteration commit is skipped
func (c *AppConfig) NoCommit() bool {
	return c.noCommit
}

// SkipValidation returns whether the validation gate is skipped
func (c *AppConfig) SkipValidation() bool {
	return c.skipValidation
}

// WorktreesEnabled returns whether worktree resolution is active
func (c *AppConfig) WorktreesEnabled() bool {
	return c.worktreesEnabled
}

// WorktreesDir returns the directory worktrees are expected under
func (c *AppConfig) WorktreesDir() string {
	return c.worktreesDir
}

// DBPath returns the configured work item database path
func (c *AppConfig) DBPath() string {
	return c.dbPath
}

// AuditLogPath returns the configured audit sink path
func (c *AppConfig) AuditLogPath() string {
	return c.auditLogPath
}

// ArchiveBucket returns the S3 bucket for transcript archiving
func (c *AppConfig) ArchiveBucket() string {
	return c.archiveBucket
}

// ArchivePrefix returns the S3 key prefix for transcript archiving
func (c *AppConfig) ArchivePrefix() string {
	return c.archivePrefix
}

// ArchiveRegion returns the AWS region override for archiving
func (c *AppConfig) ArchiveRegion() string {
	return c.archiveRegion
}

// StderrLevel returns the minimum stderr log level
func (c *AppConfig) StderrLevel() string {
	return c.stderrLevel
}

// ConfigSource returns where the configuration came from
func (c *AppConfig) ConfigSource() string {
	return c.configSource
}

// SettingPath returns the path to setting.json if loaded from file
func (c *AppConfig) SettingPath() string {
	return c.settingPath
}

// NewAppConfig creates a new AppConfig with the given values.
// This is typically called by the infrastructure layer after loading
// and merging configuration sources.
func NewAppConfig(
	home, harness, model string,
	completionPromise string,
	minIterations, maxIterations, inactivityTimeoutSec, errorThreshold int,
	exitOnError, allowAll, noCommit, skipValidation bool,
	worktreesEnabled bool, worktreesDir string,
	dbPath, auditLogPath string,
	archiveBucket, archivePrefix, archiveRegion string,
	stderrLevel string,
	configSource, settingPath string,
) *AppConfig {
	return &AppConfig{
		home:                 home,
		harness:              harness,
		model:                model,
		completionPromise:    completionPromise,
		minIterations:        minIterations,
		maxIterations:        maxIterations,
		inactivityTimeoutSec: inactivityTimeoutSec,
		errorThreshold:       errorThreshold,
		exitOnError:          exitOnError,
		allowAll:             allowAll,
		noCommit:             noCommit,
		skipValidation:       skipValidation,
		worktreesEnabled:     worktreesEnabled,
		worktreesDir:         worktreesDir,
		dbPath:               dbPath,
		auditLogPath:         auditLogPath,
		archiveBucket:        archiveBucket,
		archivePrefix:        archivePrefix,
		archiveRegion:        archiveRegion,
		stderrLevel:          stderrLevel,
		configSource:         configSource,
		settingPath:          settingPath,
	}
}
