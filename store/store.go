// Package store implements the content-addressed loose-object backend:
// objects live at <objects-dir>/<xx>/<yyyy…>, writes go
// through a temp file and an atomic rename, and reads support both exact
// and ambiguity-aware prefix lookup.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/covdata/cov/errc"
	"github.com/covdata/cov/internal/objio"
	"github.com/covdata/cov/object"
	"github.com/covdata/cov/oid"
)

// Backend is a loose object store rooted at a single objects/ directory.
type Backend struct {
	dir string
	log *slog.Logger

	mu    sync.RWMutex
	index map[string][]string // bucket (2 hex chars) -> sorted remainder names, once warmed
}

// Open returns a Backend rooted at dir. dir need not exist yet; it is
// created on first write.
func Open(dir string) *Backend {
	return &Backend{dir: dir, log: slog.Default()}
}

// WithLogger returns a copy of b that logs through logger.
func (b *Backend) WithLogger(logger *slog.Logger) *Backend {
	cp := *b
	cp.log = logger
	return &cp
}

// Dir returns the root objects/ directory.
func (b *Backend) Dir() string { return b.dir }

func (b *Backend) path(id oid.OID) string {
	return filepath.Join(b.dir, id.Path())
}

// Write serialises obj, computes its content-addressed oid, and persists it
// via a temp-file-then-rename write. Writing an object
// whose bytes already exist on disk is idempotent: the rename simply
// replaces identical content and the same oid is returned.
func (b *Backend) Write(obj object.Codable) (oid.OID, error) {
	const op = "store.Write"
	raw, err := obj.Encode()
	if err != nil {
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}

	w, err := objio.NewSafeWriter(b.dir)
	if err != nil {
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Rollback()
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}
	id, err := w.Finish()
	if err != nil {
		_ = w.Rollback()
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}

	final := b.path(id)
	if err := w.Commit(final); err != nil {
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}
	b.invalidate(id)
	b.log.Debug("store: wrote object", "op", op, "oid", id.String(), "kind", obj.Kind().String())
	return id, nil
}

// Lookup loads and decodes the object named by id.
func (b *Backend) Lookup(id oid.OID) (object.Codable, error) {
	const op = "store.Lookup"
	raw, err := b.readRaw(b.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errc.New(op, errc.NotFound, fmt.Errorf("store: no object %s", id))
		}
		return nil, errc.New(op, errc.BadSyntax, err)
	}
	obj, err := object.Decode(raw)
	if err != nil {
		return nil, err
	}
	return obj, nil
}

func (b *Backend) readRaw(path string) ([]byte, error) {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return objio.Inflate(compressed)
}

// LookupPrefix resolves a hex prefix of at least 4 characters against the
// store, returning notfound when nothing matches and ambiguous when more
// than one object does.
func (b *Backend) LookupPrefix(prefix string) (object.Codable, oid.OID, error) {
	const op = "store.LookupPrefix"
	id, err := b.resolvePrefix(op, prefix)
	if err != nil {
		return nil, oid.OID{}, err
	}
	obj, err := b.Lookup(id)
	if err != nil {
		return nil, oid.OID{}, err
	}
	return obj, id, nil
}

// ResolvePrefix is like LookupPrefix but does not load the object.
func (b *Backend) ResolvePrefix(prefix string) (oid.OID, error) {
	return b.resolvePrefix("store.ResolvePrefix", prefix)
}

func (b *Backend) resolvePrefix(op, prefix string) (oid.OID, error) {
	if err := oid.ParsePrefix(prefix); err != nil {
		return oid.OID{}, errc.New(op, errc.InvalidSpec, err)
	}
	if len(prefix) == oid.HexSize {
		id, err := oid.Parse(prefix)
		if err != nil {
			return oid.OID{}, errc.New(op, errc.InvalidSpec, err)
		}
		return id, nil
	}

	bucket := prefix[:2]
	rest := prefix[2:]
	names, err := b.bucketNames(bucket)
	if err != nil {
		if os.IsNotExist(err) {
			return oid.OID{}, errc.New(op, errc.NotFound, fmt.Errorf("store: no objects with prefix %s", prefix))
		}
		return oid.OID{}, errc.New(op, errc.BadSyntax, err)
	}

	var matches []string
	for _, n := range names {
		if len(n) >= len(rest) && n[:len(rest)] == rest {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 0:
		return oid.OID{}, errc.New(op, errc.NotFound, fmt.Errorf("store: no objects with prefix %s", prefix))
	case 1:
		return oid.Parse(bucket + matches[0])
	default:
		return oid.OID{}, errc.New(op, errc.Ambiguous, fmt.Errorf("store: prefix %s matches %d objects", prefix, len(matches)))
	}
}

func (b *Backend) bucketNames(bucket string) ([]string, error) {
	b.mu.RLock()
	if b.index != nil {
		if names, ok := b.index[bucket]; ok {
			b.mu.RUnlock()
			return names, nil
		}
	}
	b.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(b.dir, bucket))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func (b *Backend) invalidate(id oid.OID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return
	}
	bucket := id.String()[:2]
	delete(b.index, bucket)
}

// hexBuckets lists all possible two-hex-character bucket names, in order.
var hexBuckets = func() []string {
	const digits = "0123456789abcdef"
	out := make([]string, 0, 256)
	for _, hi := range digits {
		for _, lo := range digits {
			out = append(out, string(hi)+string(lo))
		}
	}
	return out
}()

// WarmPrefixIndex concurrently stats every objects/xx bucket and builds an
// in-memory index of the object names it holds, so subsequent prefix
// lookups in indexed buckets avoid a directory read. Write drops the bucket
// it writes into from the index, and a bucket missing from the index is
// read from disk. The 256 buckets are independent and are scanned in
// parallel via errgroup.
func (b *Backend) WarmPrefixIndex(ctx context.Context) error {
	idx := make(map[string][]string, 256)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for _, bucket := range hexBuckets {
		bucket := bucket
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entries, err := os.ReadDir(filepath.Join(b.dir, bucket))
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				if !e.IsDir() {
					names = append(names, e.Name())
				}
			}
			sort.Strings(names)
			mu.Lock()
			idx[bucket] = names
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return errc.New("store.WarmPrefixIndex", errc.BadSyntax, err)
	}

	b.mu.Lock()
	b.index = idx
	b.mu.Unlock()
	b.log.Debug("store: warmed prefix index", "op", "store.WarmPrefixIndex", "buckets", len(idx))
	return nil
}
