package utils

import (
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestGetLastCachedFile(t *testing.T) {
	tmpDir := t.TempDir()

	prefix1 := CachePrefix("https://example.com/gtfs1.zip")
	prefix2 := CachePrefix("https://example.com/gtfs2.zip")
	if prefix1 == prefix2 {
		t.Fatalf("expected distinct prefixes for distinct URLs, got %s", prefix1)
	}

	createFileWithModTime(t, filepath.Join(tmpDir, prefix1+"200.zip"), time.Now().Add(-2*time.Hour))
	createFileWithModTime(t, filepath.Join(tmpDir, prefix1+"100.zip"), time.Now().Add(-3*time.Hour))
	createFileWithModTime(t, filepath.Join(tmpDir, prefix2+"300.zip"), time.Now().Add(-1*time.Hour))

	lastFile, err := GetLastCachedFile(tmpDir, prefix1)
	if err != nil {
		t.Fatalf("GetLastCachedFile failed: %v", err)
	}
	expectedFile := filepath.Join(tmpDir, prefix1+"200.zip")
	if lastFile != expectedFile {
		t.Errorf("Expected last file for first source to be %s, got %s", expectedFile, lastFile)
	}

	lastFile, err = GetLastCachedFile(tmpDir, prefix2)
	if err != nil {
		t.Fatalf("GetLastCachedFile failed: %v", err)
	}
	expectedFile = filepath.Join(tmpDir, prefix2+"300.zip")
	if lastFile != expectedFile {
		t.Errorf("Expected last file for second source to be %s, got %s", expectedFile, lastFile)
	}

	_, err = GetLastCachedFile(tmpDir, CachePrefix("https://example.com/unknown.zip"))
	if err == nil {
		t.Error("Expected an error for a source with no cached files, but got nil")
	}
	t.Run("Invalid Cache Directory Read", func(t *testing.T) {
		invalidDir := "/invalid/cache/dir"
		_, err := GetLastCachedFile(invalidDir, prefix1)
		if err == nil {
			t.Errorf("Expected error for os.ReadDir failure, got none")
		}
	})

	t.Run("Empty Cache Directory", func(t *testing.T) {
		emptyDir := t.TempDir()
		_, err = GetLastCachedFile(emptyDir, prefix2)
		if err == nil {
			t.Errorf("Expected error for empty cache directory, but got none")
		}
	})
}

func TestWriteCachedFile(t *testing.T) {
	tmpDir := t.TempDir()
	prefix := CachePrefix("https://example.com/gtfs.zip")

	path, err := WriteCachedFile(tmpDir, prefix, []byte("bundle"))
	if err != nil {
		t.Fatalf("WriteCachedFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read cached file: %v", err)
	}
	if string(data) != "bundle" {
		t.Errorf("unexpected cached content %q", data)
	}

	last, err := GetLastCachedFile(tmpDir, prefix)
	if err != nil {
		t.Fatalf("GetLastCachedFile failed: %v", err)
	}
	if last != path {
		t.Errorf("expected %s, got %s", path, last)
	}
}

func TestMakeMap(t *testing.T) {
	m := MakeMap("stop_no", "51479")
	if len(m) != 1 || m["stop_no"] != "51479" {
		t.Errorf("unexpected map %v", m)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		raw  string
		keys []string
		want string
	}{
		{"http://api.translink.ca/rttiapi/v1/buses?apikey=SECRET&stopNo=51479", []string{"apikey"}, "http://api.translink.ca/rttiapi/v1/buses?apikey=xxxxx&stopNo=51479"},
		{"http://api.translink.ca/rttiapi/v1/buses?stopNo=51479", []string{"apikey"}, "http://api.translink.ca/rttiapi/v1/buses?stopNo=51479"},
		{"https://oba.example.com/api/where/stop/1_75403.json?key=SECRET", []string{"apikey", "key"}, "https://oba.example.com/api/where/stop/1_75403.json?key=xxxxx"},
	}
	for _, tt := range tests {
		u, err := url.Parse(tt.raw)
		if err != nil {
			t.Fatalf("failed to parse %s: %v", tt.raw, err)
		}
		if got := RedactURL(u, tt.keys...); got != tt.want {
			t.Errorf("RedactURL(%s) = %s, want %s", tt.raw, got, tt.want)
		}
		if u.Query().Get("stopNo") == "xxxxx" {
			t.Error("RedactURL modified its argument")
		}
	}
}

func createFileWithModTime(t *testing.T, path string, modTime time.Time) {
	t.Helper()

	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file %s: %v", path, err)
	}
	defer file.Close()

	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatalf("Failed to set modification time for file %s: %v", path, err)
	}
}

func TestCreateCacheDirectory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("Creates new directory", func(t *testing.T) {
		baseTempDir := t.TempDir()
		tempDir := filepath.Join(baseTempDir, "test-cache")

		err := CreateCacheDirectory(tempDir, logger)
		if err != nil {
			t.Fatalf("Failed to create cache directory: %v", err)
		}

		stat, err := os.Stat(tempDir)
		if err != nil {
			t.Fatalf("Failed to stat directory: %v", err)
		}
		if !stat.IsDir() {
			t.Error("Cache directory was created but is not a directory")
		}
	})

	t.Run("Handles existing directory", func(t *testing.T) {
		baseTempDir := t.TempDir()
		tempDir := filepath.Join(baseTempDir, "test-cache")

		if err := os.MkdirAll(tempDir, os.ModePerm); err != nil {
			t.Fatalf("Failed to create test directory: %v", err)
		}

		err := CreateCacheDirectory(tempDir, logger)
		if err != nil {
			t.Errorf("Failed on existing directory: %v", err)
		}
	})

	t.Run("Fails: if path is a file", func(t *testing.T) {
		baseTempDir := t.TempDir()
		filePath := filepath.Join(baseTempDir, "test-file")

		if file, err := os.Create(filePath); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		} else {
			file.Close()
		}

		err := CreateCacheDirectory(filePath, logger)
		if err == nil {
			t.Error("Expected error when path is a file, but got nil")
		}
	})

}
