package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "debug.log")

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("creates nested directories", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "nested", "dir", "debug.log")

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if _, err := os.Stat(logPath); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", logPath)
		}
	})

	t.Run("resumes existing file", func(t *testing.T) {
		dir := t.TempDir()
		logPath := filepath.Join(dir, "debug.log")

		if err := os.WriteFile(logPath, []byte("previous"), 0o644); err != nil {
			t.Fatalf("seed write failed: %v", err)
		}

		rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewRotatingWriter failed: %v", err)
		}
		defer func() { _ = rw.Close() }()

		if rw.CurrentSize() != int64(len("previous")) {
			t.Errorf("CurrentSize() = %d, want %d", rw.CurrentSize(), len("previous"))
		}

		if _, err := rw.Write([]byte(" appended")); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
		if err := rw.Sync(); err != nil {
			t.Fatalf("Sync failed: %v", err)
		}

		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if string(content) != "previous appended" {
			t.Errorf("content = %q, want %q", string(content), "previous appended")
		}
	})
}

func TestRotatingWriterNoRotation(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	data := []byte(strings.Repeat("x", 4096))
	for i := 0; i < 10; i++ {
		if _, err := rw.Write(data); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Error("expected no backup file when rotation is disabled")
	}

	if got, want := rw.CurrentSize(), int64(len(data)*10); got != want {
		t.Errorf("CurrentSize() = %d, want %d", got, want)
	}
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 2})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	// Write enough 256KB chunks to force multiple rotations of a 1MB file.
	chunk := []byte(strings.Repeat("y", 256*1024))
	for i := 0; i < 12; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("current log file missing: %v", err)
	}
	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("backup %s.1 missing: %v", logPath, err)
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Error("backup .3 exists, exceeds MaxBackups=2")
	}
}

func TestRotatingWriterZeroBackups(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(logPath, RotationConfig{MaxSizeMB: 1, MaxBackups: 0})
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	chunk := []byte(strings.Repeat("z", 512*1024))
	for i := 0; i < 6; i++ {
		if _, err := rw.Write(chunk); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	if _, err := os.Stat(logPath + ".1"); !os.IsNotExist(err) {
		t.Error("expected no backup file with MaxBackups=0")
	}
}

func TestRotatingWriterClose(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}

	if err := rw.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if _, err := rw.Write([]byte("data")); err == nil {
		t.Error("expected error writing to closed writer")
	}

	// Close is idempotent.
	if err := rw.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}

func TestRotatingWriterFilePath(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "debug.log")

	rw, err := NewRotatingWriter(logPath, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewRotatingWriter failed: %v", err)
	}
	defer func() { _ = rw.Close() }()

	if rw.FilePath() != logPath {
		t.Errorf("FilePath() = %q, want %q", rw.FilePath(), logPath)
	}
}
