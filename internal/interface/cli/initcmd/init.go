// Package initcmd implements the ralph init command.
package initcmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	infraConfig "github.com/agentloop/ralph/internal/infra/config"
	"github.com/agentloop/ralph/internal/infra/persistence/file"
	"github.com/agentloop/ralph/internal/interface/cli/common"
)

// NewCommand creates the init command
func NewCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the ralph home directory",
		Long: `Init creates the ralph home (RALPH_HOME, default .ralph) with a
default setting.json, the work item database, and the state and
archive directories. Existing files are preserved unless --force is
given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.GetGlobalConfig()
			home := cfg.Home()
			out := cmd.OutOrStdout()

			for _, d := range []string{
				filepath.Join(home, "state"),
				filepath.Join(home, "archive"),
			} {
				if err := os.MkdirAll(d, 0755); err != nil {
					return fmt.Errorf("create directory %s: %w", d, err)
				}
			}

			// setting.json holds the defaults users are expected to edit.
			settingPath := filepath.Join(home, "setting.json")
			settingExists := fileExists(settingPath)
			if force || !settingExists {
				if err := file.WriteFileAtomic(afero.NewOsFs(), settingPath, infraConfig.CreateDefaultSettings()); err != nil {
					return fmt.Errorf("write setting.json: %w", err)
				}
				if force && settingExists {
					fmt.Fprintf(out, "WROTE (force): %s\n", settingPath)
				} else {
					fmt.Fprintf(out, "WROTE: %s\n", settingPath)
				}
			} else {
				fmt.Fprintf(out, "SKIP: %s (exists; use --force to overwrite)\n", settingPath)
			}

			// Opening the container creates ralph.db and applies the schema.
			container, err := common.InitializeContainer(cfg)
			if err != nil {
				return err
			}
			container.Close()

			if err := updateGitignore(out, home); err != nil {
				fmt.Fprintf(out, "Warning: could not update .gitignore: %v\n", err)
			}

			fmt.Fprintf(out, "Initialized ralph home in %s:\n", home)
			fmt.Fprintln(out, "  ├── setting.json   # configuration")
			fmt.Fprintln(out, "  ├── ralph.db       # work item database")
			fmt.Fprintln(out, "  ├── state/         # per-change loop state")
			fmt.Fprintln(out, "  └── archive/       # iteration transcripts")
			fmt.Fprintln(out, "")
			fmt.Fprintln(out, "The audit trail (audit.jsonl) is created on the first event.")
			if !force {
				fmt.Fprintln(out, "Existing files were preserved. Use --force to overwrite.")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing files")
	return cmd
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// updateGitignore excludes the mutable parts of the home directory
// while keeping setting.json tracked. Absolute homes live outside the
// repository, so nothing is written for them.
func updateGitignore(out io.Writer, home string) error {
	if filepath.IsAbs(home) {
		return nil
	}

	prefix := "/" + filepath.ToSlash(home)
	block := strings.Join([]string{
		"# >>> ralph",
		prefix + "/state/",
		prefix + "/archive/",
		prefix + "/ralph.db",
		prefix + "/audit.jsonl",
		"# <<< ralph",
	}, "\n")

	var existing []byte
	if fileExists(".gitignore") {
		var err error
		existing, err = os.ReadFile(".gitignore")
		if err != nil {
			return fmt.Errorf("read .gitignore: %w", err)
		}
	}

	content := string(existing)
	if strings.Contains(content, "# >>> ralph") {
		fmt.Fprintf(out, "SKIP: .gitignore ralph block already present\n")
		return nil
	}

	var b strings.Builder
	b.WriteString(content)
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		b.WriteString("\n")
	}
	if len(content) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(block)
	b.WriteString("\n")

	if err := file.WriteFileAtomic(afero.NewOsFs(), ".gitignore", []byte(b.String())); err != nil {
		return err
	}
	fmt.Fprintf(out, "WROTE: .gitignore (ralph block)\n")
	return nil
}
