package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

// setupTestDir points the package at a temporary log directory and resets global state
func setupTestDir(t *testing.T) string {
	t.Helper()

	tempDir := t.TempDir()

	origLogDir := logDir
	origInitErr := initErr
	origRunID := runID

	logDir = tempDir
	initErr = nil
	initOnce = sync.Once{}
	runID = ""
	runIDOnce = sync.Once{}

	t.Cleanup(func() {
		logDir = origLogDir
		initErr = origInitErr
		initOnce = sync.Once{}
		runID = origRunID
		runIDOnce = sync.Once{}
	})

	return tempDir
}

func TestNewLogger(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("browser")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	if logger.component != "browser" {
		t.Errorf("Expected component 'browser', got %q", logger.component)
	}
	if logger.RunID() == "" {
		t.Error("Expected non-empty run ID")
	}
	if _, err := os.Stat(logger.LogPath()); os.IsNotExist(err) {
		t.Errorf("Log file does not exist at %s", logger.LogPath())
	}
}

func TestLoggerFormatting(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("portal")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	logger.Debugf("Debug message")
	logger.Infof("Login marker found after %d ms", 120)
	logger.Warnf("Warning message")
	logger.Errorf("Error message")

	content, err := os.ReadFile(logger.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	for _, pattern := range []string{
		"[portal] [DEBUG] Debug message",
		"[portal] [INFO] Login marker found after 120 ms",
		"[portal] [WARN] Warning message",
		"[portal] [ERROR] Error message",
	} {
		if !strings.Contains(string(content), pattern) {
			t.Errorf("Log content missing expected pattern: %q\nContent:\n%s", pattern, content)
		}
	}
}

func TestMultipleComponentsShareRunFile(t *testing.T) {
	setupTestDir(t)

	browserLog, err := NewLogger("browser")
	if err != nil {
		t.Fatalf("Failed to create browser logger: %v", err)
	}
	defer browserLog.Close()

	artifactLog, err := NewLogger("artifact")
	if err != nil {
		t.Fatalf("Failed to create artifact logger: %v", err)
	}
	defer artifactLog.Close()

	if browserLog.RunID() != artifactLog.RunID() {
		t.Errorf("Expected same run ID, got %q and %q", browserLog.RunID(), artifactLog.RunID())
	}
	if browserLog.LogPath() != artifactLog.LogPath() {
		t.Errorf("Expected same log path, got %q and %q", browserLog.LogPath(), artifactLog.LogPath())
	}

	browserLog.Infof("session opened")
	artifactLog.Infof("artifact captured")

	content, err := os.ReadFile(browserLog.LogPath())
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "[browser]") || !strings.Contains(string(content), "[artifact]") {
		t.Errorf("Log missing component entries:\n%s", content)
	}
}

func TestGetRunID(t *testing.T) {
	setupTestDir(t)

	id1 := GetRunID()
	id2 := GetRunID()
	if id1 != id2 {
		t.Errorf("Expected consistent run ID, got %q and %q", id1, id2)
	}
	if id1 == "" {
		t.Error("Expected non-empty run ID")
	}
}

func TestGetLogDirectory(t *testing.T) {
	want := setupTestDir(t)

	dir, err := GetLogDirectory()
	if err != nil {
		t.Fatalf("Failed to get log directory: %v", err)
	}
	if dir != want {
		t.Errorf("GetLogDirectory() = %q, want %q", dir, want)
	}
}

func TestLoggerClose(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}

func TestLogPathFormat(t *testing.T) {
	setupTestDir(t)

	logger, err := NewLogger("test")
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Close()

	fileName := filepath.Base(logger.LogPath())
	if !strings.HasSuffix(fileName, "-winona.log") {
		t.Errorf("Expected log file to end with '-winona.log', got %q", fileName)
	}
	if runPart := strings.TrimSuffix(fileName, "-winona.log"); !strings.Contains(runPart, "-") {
		t.Errorf("Expected run ID part to be a UUID, got %q", runPart)
	}
}

func TestLogDirectoryFromEnvironment(t *testing.T) {
	setupTestDir(t)
	envDir := filepath.Join(t.TempDir(), "from-env")
	logDir = ""
	t.Setenv(DirEnv, envDir)

	logger, err := NewLogger("env")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	if got := filepath.Dir(logger.LogPath()); got != envDir {
		t.Errorf("expected log in %s, got %s", envDir, got)
	}
	if _, err := os.Stat(envDir); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
}
