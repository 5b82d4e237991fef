package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"busesareus.org/internal/report"
)

// CachePrefix returns the file name prefix used for bundles downloaded from sourceURL.
func CachePrefix(sourceURL string) string {
	hash := sha1.Sum([]byte(sourceURL))
	return "gtfs_" + hex.EncodeToString(hash[:8]) + "_"
}

// GetLastCachedFile returns the most recently modified file in cacheDir whose
// name starts with prefix.
func GetLastCachedFile(cacheDir, prefix string) (string, error) {
	files, err := os.ReadDir(cacheDir)
	if err != nil {
		return "", err
	}

	var lastModTime time.Time
	var lastModFile string

	for _, file := range files {
		if !file.IsDir() && strings.HasPrefix(file.Name(), prefix) {
			fileInfo, err := file.Info()
			if err != nil {
				return "", err
			}
			if fileInfo.ModTime().After(lastModTime) {
				lastModTime = fileInfo.ModTime()
				lastModFile = file.Name()
			}
		}
	}

	if lastModFile == "" {
		return "", fmt.Errorf("no cached files found with prefix %s", prefix)
	}

	return filepath.Join(cacheDir, lastModFile), nil
}

// WriteCachedFile stores data as <prefix><unix seconds>.zip in cacheDir and
// returns the path written.
func WriteCachedFile(cacheDir, prefix string, data []byte) (string, error) {
	path := filepath.Join(cacheDir, fmt.Sprintf("%s%d.zip", prefix, time.Now().Unix()))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", err
	}
	return path, nil
}

// CreateCacheDirectory ensures the cache directory exists, creating it if necessary.
func CreateCacheDirectory(cacheDir string, logger *slog.Logger) error {
	stat, err := os.Stat(cacheDir)

	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(cacheDir, os.ModePerm); err != nil {
				report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
					Level: sentry.LevelError,
					ExtraContext: map[string]interface{}{
						"cache_dir": cacheDir,
					},
				})
				return err
			}
			logger.Info("Created cache directory", "cache_dir", cacheDir)
			return nil
		}
		return err

	}
	if !stat.IsDir() {
		err := fmt.Errorf("%s is not a directory", cacheDir)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Level: sentry.LevelError,
			ExtraContext: map[string]interface{}{
				"cache_dir": cacheDir,
			},
		})
		return err
	}
	return nil
}
