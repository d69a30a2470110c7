package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"JSON", Config{Level: "info", Format: "json"}, false},
		{"Console", Config{Level: "debug", Format: "console"}, false},
		{"BadLevel", Config{Level: "loud", Format: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "isolated-regex.log")

	log, err := New(Config{
		Level:  "info",
		Format: "console",
		File:   &FileConfig{Enabled: true, Path: path},
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	log.WithComponent("store").WithCharacter("aqua.png").Info("Rule saved")
	log.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	line := string(data)
	for _, want := range []string{`"msg":"Rule saved"`, `"component":"store"`, `"avatar":"aqua.png"`} {
		if !strings.Contains(line, want) {
			t.Errorf("Log line %s does not contain %s", line, want)
		}
	}
}
