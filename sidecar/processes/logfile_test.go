package processes

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenLogSinkCreatesDirectoryAndAppends(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "nested", "app")

	sink, err := openLogSink(dataDir, DefaultLogFileName)
	if err != nil {
		t.Fatalf("openLogSink returned error: %v", err)
	}
	if sink.path != filepath.Join(dataDir, DefaultLogFileName) {
		t.Errorf("unexpected log path %s", sink.path)
	}
	if _, err := sink.stdout.WriteString("out-1\n"); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	if _, err := sink.stderr.WriteString("err-1\n"); err != nil {
		t.Fatalf("write stderr: %v", err)
	}
	if _, err := sink.stdout.WriteString("out-2\n"); err != nil {
		t.Fatalf("write stdout: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A second launch appends rather than truncating.
	sink, err = openLogSink(dataDir, DefaultLogFileName)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	sink.stderr.WriteString("err-2\n")
	sink.Close()

	data, err := os.ReadFile(filepath.Join(dataDir, DefaultLogFileName))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "out-1\nerr-1\nout-2\nerr-2\n"
	if string(data) != want {
		t.Errorf("log contents = %q, want %q", string(data), want)
	}
}

func TestOpenLogSinkHandlesAreIndependent(t *testing.T) {
	sink, err := openLogSink(t.TempDir(), "x.log")
	if err != nil {
		t.Fatalf("openLogSink returned error: %v", err)
	}
	defer sink.Close()

	if sink.stdout.Fd() == sink.stderr.Fd() {
		t.Error("stderr should be a separate descriptor")
	}
}

func TestOpenLogSinkFailures(t *testing.T) {
	if _, err := openLogSink("", DefaultLogFileName); !errors.Is(err, ErrLogSetupFailed) {
		t.Errorf("empty data dir: expected ErrLogSetupFailed, got %v", err)
	}

	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, nil, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := openLogSink(filepath.Join(blocker, "sub"), DefaultLogFileName)
	if !errors.Is(err, ErrLogSetupFailed) {
		t.Fatalf("expected ErrLogSetupFailed, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "Failed to create app data dir") {
		t.Errorf("unexpected message %q", err.Error())
	}
}
