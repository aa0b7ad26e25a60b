package file_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/agentloop/ralph/internal/infra/persistence/file"
	"github.com/spf13/afero"
)

func TestWriteFileAtomic(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		data    []byte
		setupFS func(fs afero.Fs) error
		want    string
	}{
		{
			name: "Write new file in nested directory",
			path: "state/change-1/state.json",
			data: []byte(`{"iteration":1}`),
			want: `{"iteration":1}`,
		},
		{
			name: "Overwrite existing file",
			path: "existing/state.json",
			data: []byte("new content"),
			setupFS: func(fs afero.Fs) error {
				fs.MkdirAll("existing", 0o755)
				return afero.WriteFile(fs, "existing/state.json", []byte("old content"), 0o644)
			},
			want: "new content",
		},
		{
			name: "Write empty file",
			path: "empty.json",
			data: []byte{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()

			if tt.setupFS != nil {
				if err := tt.setupFS(fs); err != nil {
					t.Fatalf("Failed to setup filesystem: %v", err)
				}
			}

			if err := file.WriteFileAtomic(fs, tt.path, tt.data); err != nil {
				t.Fatalf("WriteFileAtomic() error = %v", err)
			}

			content, err := afero.ReadFile(fs, tt.path)
			if err != nil {
				t.Fatalf("Failed to read file: %v", err)
			}
			if string(content) != tt.want {
				t.Errorf("File content mismatch: got %q, want %q", string(content), tt.want)
			}

			// No temp files may survive a successful write
			assertNoTempFiles(t, fs, tt.path)
		})
	}
}

// MockFailFS is a filesystem that fails on specific operations for testing
type MockFailFS struct {
	afero.Fs
	failOnRename bool
}

func (m *MockFailFS) Rename(oldname, newname string) error {
	if m.failOnRename {
		return errors.New("rename failed")
	}
	return m.Fs.Rename(oldname, newname)
}

func TestWriteFileAtomic_RenameFailure(t *testing.T) {
	// Temp file must be cleaned up when rename fails
	fs := &MockFailFS{
		Fs:           afero.NewMemMapFs(),
		failOnRename: true,
	}

	err := file.WriteFileAtomic(fs, "state.json", []byte("content"))
	if err == nil {
		t.Error("Expected error when rename fails")
	}

	assertNoTempFiles(t, fs, "state.json")
}

func assertNoTempFiles(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	dir := "."
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir = path[:i]
	}
	files, _ := afero.ReadDir(fs, dir)
	for _, f := range files {
		if strings.HasPrefix(f.Name(), ".tmp-") {
			t.Errorf("Temp file not cleaned up: %s", f.Name())
		}
	}
}

func TestAppendLine(t *testing.T) {
	fs := afero.NewMemMapFs()

	if err := file.AppendLine(fs, "logs/audit.jsonl", []byte(`{"event":"first"}`)); err != nil {
		t.Fatalf("AppendLine() error = %v", err)
	}
	if err := file.AppendLine(fs, "logs/audit.jsonl", []byte(`{"event":"second"}`+"\n")); err != nil {
		t.Fatalf("AppendLine() error = %v", err)
	}

	content, err := afero.ReadFile(fs, "logs/audit.jsonl")
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	want := `{"event":"first"}` + "\n" + `{"event":"second"}` + "\n"
	if string(content) != want {
		t.Errorf("AppendLine content mismatch: got %q, want %q", string(content), want)
	}
}
