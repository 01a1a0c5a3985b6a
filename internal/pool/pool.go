// Package pool replicates authentication artifacts from the canonical
// browser profile (pool-0) into the replica profiles (pool-1..pool-N).
//
// Replicas are never logged into directly; they only ever receive copies.
// The sync is stateless and idempotent, so re-running it after a partial
// failure simply retries everything.
package pool

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hydraspecter/hydra/internal/logging"
)

// Artifacts are the session-relevant subpaths of a Chromium user-data
// directory. Everything authentication touches lives under Default/.
var Artifacts = []string{
	filepath.Join("Default", "Cookies"),
	filepath.Join("Default", "Network", "Cookies"),
	filepath.Join("Default", "Local Storage"),
	filepath.Join("Default", "Session Storage"),
	filepath.Join("Default", "IndexedDB"),
	filepath.Join("Default", "Service Worker"),
	filepath.Join("Default", "Preferences"),
}

// CanonicalName is the profile directory that receives interactive logins.
const CanonicalName = "pool-0"

// Layout describes a profile pool on disk.
type Layout struct {
	// Root is the directory containing pool-0..pool-N.
	Root string
	// Replicas is the number of replica profiles (pool-1..pool-Replicas).
	Replicas int
}

// Canonical returns the canonical profile directory.
func (l Layout) Canonical() string {
	return filepath.Join(l.Root, CanonicalName)
}

// Replica returns the directory of replica i (1-based).
func (l Layout) Replica(i int) string {
	return filepath.Join(l.Root, fmt.Sprintf("pool-%d", i))
}

// ItemFailure records one (artifact, replica) copy that did not succeed.
type ItemFailure struct {
	Artifact string
	Replica  string
	Err      error
}

func (f ItemFailure) Error() string {
	return fmt.Sprintf("%s -> %s: %v", f.Artifact, f.Replica, f.Err)
}

// Result summarizes a sync run.
type Result struct {
	// Synced is the number of (artifact, replica) copies that succeeded.
	Synced int
	// Skipped is the number of artifacts absent from the canonical profile,
	// counted once per replica.
	Skipped int
	// Failures holds every copy that was attempted and failed.
	Failures []ItemFailure
}

// Sync copies every present artifact from the canonical profile into each
// replica, creating replica directories on demand. A failed copy is logged
// and skipped; the batch always runs to completion.
func Sync(layout Layout) (*Result, error) {
	canonical := layout.Canonical()
	if _, err := os.Stat(canonical); err != nil {
		return nil, fmt.Errorf("canonical profile %s: %w", canonical, err)
	}

	result := &Result{}
	for i := 1; i <= layout.Replicas; i++ {
		replica := layout.Replica(i)
		if err := os.MkdirAll(replica, 0o755); err != nil {
			// The whole replica is unreachable; record one failure per
			// artifact so the count reflects what was not synced.
			for _, artifact := range Artifacts {
				result.Failures = append(result.Failures, ItemFailure{
					Artifact: artifact,
					Replica:  replica,
					Err:      err,
				})
			}
			logging.Errorf("sync: cannot create replica %s: %v", replica, err)
			continue
		}

		for _, artifact := range Artifacts {
			src := filepath.Join(canonical, artifact)
			info, err := os.Stat(src)
			if os.IsNotExist(err) {
				result.Skipped++
				continue
			}
			if err != nil {
				result.Failures = append(result.Failures, ItemFailure{artifact, replica, err})
				logging.Errorf("sync: stat %s: %v", src, err)
				continue
			}

			dst := filepath.Join(replica, artifact)
			if err := copyArtifact(src, dst, info); err != nil {
				result.Failures = append(result.Failures, ItemFailure{artifact, replica, err})
				logging.Errorf("sync: copy %s -> %s: %v", src, dst, err)
				continue
			}
			result.Synced++
		}
	}

	logging.Infof("sync: %d items copied, %d skipped, %d failed",
		result.Synced, result.Skipped, len(result.Failures))
	return result, nil
}

func copyArtifact(src, dst string, info os.FileInfo) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	if info.IsDir() {
		// Stale replica state must not shadow the fresh copy.
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
		return copyDir(src, dst)
	}
	return copyFile(src, dst, info)
}

func copyDir(src, dst string) error {
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := copyDir(srcPath, dstPath); err != nil {
				return err
			}
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			// Sockets and pipes can appear in live profiles; skip them.
			continue
		}
		if err := copyFile(srcPath, dstPath, info); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, info os.FileInfo) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	// Preserve mtime so Chromium does not treat the copy as newer state.
	return os.Chtimes(dst, info.ModTime(), info.ModTime())
}
