package modcfg

import (
	"errors"
	"fmt"
	"os"

	"github.com/covdata/cov/errc"
)

// LoadFile parses the restricted-INI document at path. A missing file is
// treated as an empty document, not an error, matching an overlay that has
// never been written.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, errc.New("modcfg.LoadFile", errc.BadSyntax, err)
	}
	return Parse(data)
}

// LoadOverlayFile loads the modules overlay recorded at path.
func LoadOverlayFile(path string) (*Overlay, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg), nil
}

// Lock is the transactional sibling-lock-file primitive serialising
// multi-step edits to a config file: a `.lock` sibling excludes other
// writers; Commit renames it over the target, Rollback unlinks it.
type Lock struct {
	path     string
	lockPath string
	f        *os.File
	done     bool
}

// AcquireLock creates path+".lock" exclusively, failing if another writer
// already holds it.
func AcquireLock(path string) (*Lock, error) {
	const op = "modcfg.AcquireLock"
	lockPath := path + ".lock"
	f, err := os.OpenFile(lockPath, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, errc.New(op, errc.Exists, fmt.Errorf("modcfg: %s is locked", path))
		}
		return nil, errc.New(op, errc.BadSyntax, err)
	}
	return &Lock{path: path, lockPath: lockPath, f: f}, nil
}

// Write stages data into the lock file.
func (l *Lock) Write(data []byte) error {
	if l.done {
		return errors.New("modcfg: lock already finalized")
	}
	_, err := l.f.Write(data)
	return err
}

// Commit closes and atomically renames the lock file over the target path.
func (l *Lock) Commit() error {
	if l.done {
		return errors.New("modcfg: lock already finalized")
	}
	l.done = true
	if err := l.f.Close(); err != nil {
		return errc.New("modcfg.Lock.Commit", errc.BadSyntax, err)
	}
	if err := os.Rename(l.lockPath, l.path); err != nil {
		return errc.New("modcfg.Lock.Commit", errc.BadSyntax, err)
	}
	return nil
}

// Rollback discards the lock file without publishing it.
func (l *Lock) Rollback() error {
	if l.done {
		return nil
	}
	l.done = true
	_ = l.f.Close()
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return errc.New("modcfg.Lock.Rollback", errc.BadSyntax, err)
	}
	return nil
}

// Dump rewrites the restricted-INI document at path so that its
// module.sep/module.<name>.path sections reflect ov exactly, preserving
// every other section untouched, then prunes any section left empty.
func Dump(path string, ov *Overlay) (err error) {
	lock, err := AcquireLock(path)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = lock.Rollback()
		}
	}()

	cfg, err := LoadFile(path)
	if err != nil {
		return err
	}
	ov.ToConfig(cfg)
	cfg.PruneEmptySections()

	if err = lock.Write(cfg.Serialize()); err != nil {
		return errc.New("modcfg.Dump", errc.BadSyntax, err)
	}
	return lock.Commit()
}
