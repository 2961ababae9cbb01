package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Disk cache for rendered JSON payloads, keyed by scope and key. Scope maps
// to a directory, key to a file whose name carries an xxHash of both so
// renamed keys never collide with stale files.

const cacheRoot = "cache"

// GetCachePath returns the cache file path for a scope/key pair.
func GetCachePath(scope, key string) string {
	hash := generateHash(scope + key)
	shortHash := hash[:16]
	return filepath.Join(cacheRoot, scope, fmt.Sprintf("%s_%s.json", key, shortHash))
}

// generateHash generates an xxHash hash for the given string
func generateHash(s string) string {
	hash := xxhash.Sum64String(s)
	return fmt.Sprintf("%016x", hash)
}

// EnsureCacheDir ensures the cache directory for a scope exists.
func EnsureCacheDir(scope string) error {
	return os.MkdirAll(filepath.Join(cacheRoot, scope), 0755)
}

// Write stores a payload in the cache.
func Write(scope, key string, payload []byte) error {
	if err := EnsureCacheDir(scope); err != nil {
		return err
	}

	return os.WriteFile(GetCachePath(scope, key), payload, 0644)
}

// Read returns the cached payload if it exists and is not older than maxAge.
func Read(scope, key string, maxAge time.Duration) ([]byte, bool) {
	cachePath := GetCachePath(scope, key)

	info, err := os.Stat(cachePath)
	if err != nil {
		return nil, false
	}

	if time.Since(info.ModTime()) > maxAge {
		return nil, false
	}

	content, err := os.ReadFile(cachePath)
	if err != nil {
		return nil, false
	}

	return content, true
}

// Clear removes a single cache entry. A missing entry is not an error.
func Clear(scope, key string) error {
	err := os.Remove(GetCachePath(scope, key))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ClearScope removes every cached entry under a scope.
func ClearScope(scope string) error {
	return os.RemoveAll(filepath.Join(cacheRoot, scope))
}

// ClearOld removes cache files older than maxAge across all scopes.
func ClearOld(maxAge time.Duration) error {
	return filepath.Walk(cacheRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}

		if info.IsDir() {
			return nil
		}

		if filepath.Ext(path) != ".json" {
			return nil
		}

		if time.Since(info.ModTime()) > maxAge {
			os.Remove(path)
		}

		return nil
	})
}
