package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const lockRetryInterval = 50 * time.Millisecond

// AcquireFileLock creates lockPath exclusively, retrying until timeout.
// Lock files older than staleAfter are treated as abandoned and removed.
// The returned func releases the lock.
func AcquireFileLock(lockPath string, timeout, staleAfter time.Duration) (func(), error) {
	start := time.Now()
	for {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(lockFile, "%d\n", os.Getpid())
			_ = lockFile.Close()
			return func() {
				_ = os.Remove(lockPath)
			}, nil
		}

		if !os.IsExist(err) {
			return nil, err
		}

		if staleAfter > 0 {
			if info, statErr := os.Stat(lockPath); statErr == nil && time.Since(info.ModTime()) > staleAfter {
				_ = os.Remove(lockPath)
				continue
			}
		}

		if timeout > 0 && time.Since(start) > timeout {
			return nil, fmt.Errorf("lock %s timeout after %s", lockPath, timeout)
		}

		time.Sleep(lockRetryInterval)
	}
}

// WriteFileAtomic writes data to a unique temp file next to path and renames
// it into place, so concurrent writers never share a temp file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp file: %w", err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Chmod(perm)
	}
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write tmp file: %w", werr)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename tmp file: %w", err)
	}
	return nil
}
