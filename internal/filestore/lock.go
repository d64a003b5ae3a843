package filestore

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
)

const (
	lockDirName   = ".lock"
	lockOwnerFile = "owner.json"
)

// StaleLockAge is how old a lock may get before any process reclaims it.
const StaleLockAge = 24 * time.Hour

// processAlive reports whether pid still runs on this host.
var processAlive = func(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, os.ErrPermission)
}

type Lock struct {
	fs      afero.Fs
	lockDir string
}

type lockOwner struct {
	PID       int    `json:"pid"`
	CreatedAt string `json:"created_at"`
	Hostname  string `json:"hostname,omitempty"`
}

// AcquireLock creates dir/.lock. A second acquire fails until Release.
func AcquireLock(fs afero.Fs, dir string) (Lock, error) {
	target := strings.TrimSpace(dir)
	if target == "" {
		return Lock{}, fmt.Errorf("lock directory is required")
	}
	if err := fs.MkdirAll(target, 0o755); err != nil {
		return Lock{}, fmt.Errorf("create %s: %w", target, err)
	}

	lockDir := filepath.Join(target, lockDirName)
	err := fs.Mkdir(lockDir, 0o755)
	if errors.Is(err, iofs.ErrExist) {
		var owner lockOwner
		readErr := ReadJSON(fs, filepath.Join(lockDir, lockOwnerFile), &owner)
		if readErr == nil && owner.stale(time.Now()) {
			if rmErr := fs.RemoveAll(lockDir); rmErr != nil {
				return Lock{}, fmt.Errorf("reclaim stale lock for %s: %w", target, rmErr)
			}
			err = fs.Mkdir(lockDir, 0o755)
		} else if readErr == nil && owner.PID > 0 && owner.CreatedAt != "" {
			return Lock{}, fmt.Errorf(
				"directory is locked: %s (pid=%d created_at=%s host=%s)",
				target, owner.PID, owner.CreatedAt, owner.Hostname,
			)
		} else {
			return Lock{}, fmt.Errorf("directory is locked: %s", target)
		}
	}
	if err != nil {
		if errors.Is(err, iofs.ErrExist) {
			return Lock{}, fmt.Errorf("directory is locked: %s", target)
		}
		return Lock{}, fmt.Errorf("acquire lock for %s: %w", target, err)
	}

	owner := lockOwner{
		PID:       os.Getpid(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Hostname:  hostnameOrUnknown(),
	}
	if err := WriteJSON(fs, filepath.Join(lockDir, lockOwnerFile), owner); err != nil {
		_ = fs.Remove(lockDir)
		return Lock{}, fmt.Errorf("write lock owner for %s: %w", target, err)
	}
	return Lock{fs: fs, lockDir: lockDir}, nil
}

func (l Lock) Release() error {
	if l.fs == nil || strings.TrimSpace(l.lockDir) == "" {
		return nil
	}
	_ = l.fs.Remove(filepath.Join(l.lockDir, lockOwnerFile))
	if err := l.fs.Remove(l.lockDir); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("release lock %s: %w", l.lockDir, err)
	}
	return nil
}

// stale is true when the owner died on this host or the lock outlived
// StaleLockAge.
func (o lockOwner) stale(now time.Time) bool {
	if created, err := time.Parse(time.RFC3339, o.CreatedAt); err == nil && now.Sub(created) > StaleLockAge {
		return true
	}
	return o.PID > 0 && o.Hostname == hostnameOrUnknown() && !processAlive(o.PID)
}

func hostnameOrUnknown() string {
	host, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	host = strings.TrimSpace(host)
	if host == "" {
		return "unknown"
	}
	return host
}
