package objio

import (
	"bytes"
	"compress/zlib"
	"crypto/sha1"
	"errors"
	"fmt"
	"hash"
	"io"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/covdata/cov/oid"
)

const tempSuffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// randomSuffix returns a random 6-10 character alphanumeric string for a
// temp file name, so concurrent writers don't collide.
func randomSuffix() string {
	n := 6 + rand.Intn(5)
	b := make([]byte, n)
	for i := range b {
		b[i] = tempSuffixAlphabet[rand.Intn(len(tempSuffixAlphabet))]
	}
	return string(b)
}

// ensureDir creates dir if absent, tolerating a concurrent mkdir.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil && !os.IsExist(err) {
		return err
	}
	return nil
}

// createTemp opens a new, exclusively-created temp file under dir, named
// "tmp-obj-<random suffix>", retrying on name collision.
func createTemp(dir string) (*os.File, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	const attempts = 100
	var lastErr error
	for i := 0; i < attempts; i++ {
		name := filepath.Join(dir, "tmp-obj-"+randomSuffix())
		f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("objio: could not create temp file under %s: %w", dir, lastErr)
}

// SafeWriter writes raw object bytes through a deflate+SHA-1 tee into a
// temp file under its directory, and only becomes visible at its final content-addressed
// path when Commit succeeds.
type SafeWriter struct {
	dir  string
	tmp  *os.File
	zw   *zlib.Writer
	hash hash.Hash
	done bool
}

// NewSafeWriter begins a new write under dir.
func NewSafeWriter(dir string) (*SafeWriter, error) {
	tmp, err := createTemp(dir)
	if err != nil {
		return nil, err
	}
	h := sha1.New()
	return &SafeWriter{
		dir:  dir,
		tmp:  tmp,
		zw:   zlib.NewWriter(tmp),
		hash: h,
	}, nil
}

// Write feeds raw (uncompressed) object bytes into the stream: they are
// hashed and deflated.
func (w *SafeWriter) Write(p []byte) (int, error) {
	w.hash.Write(p)
	return w.zw.Write(p)
}

// Finish flushes the deflate stream and returns the OID of everything
// written so far. The temp file remains open; call Commit or Rollback next.
func (w *SafeWriter) Finish() (oid.OID, error) {
	if err := w.zw.Close(); err != nil {
		return oid.OID{}, fmt.Errorf("objio: finishing deflate stream: %w", err)
	}
	var sum oid.OID
	copy(sum[:], w.hash.Sum(nil))
	return sum, nil
}

// Commit atomically renames the temp file to finalPath, creating finalPath's
// parent directory if needed. Commit is idempotent: if finalPath already
// exists (another writer produced the same content-addressed bytes
// first), the rename simply replaces it with byte-identical content and
// the call still succeeds.
func (w *SafeWriter) Commit(finalPath string) error {
	if w.done {
		return errors.New("objio: SafeWriter already finalized")
	}
	w.done = true
	if err := w.tmp.Close(); err != nil {
		return fmt.Errorf("objio: closing temp file: %w", err)
	}
	if err := ensureDir(filepath.Dir(finalPath)); err != nil {
		return err
	}
	if err := os.Rename(w.tmp.Name(), finalPath); err != nil {
		return fmt.Errorf("objio: committing %s: %w", finalPath, err)
	}
	return nil
}

// Rollback discards the temp file without publishing it.
func (w *SafeWriter) Rollback() error {
	if w.done {
		return nil
	}
	w.done = true
	name := w.tmp.Name()
	_ = w.tmp.Close()
	if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("objio: rolling back %s: %w", name, err)
	}
	return nil
}

// Inflate decompresses a zlib stream in full.
func Inflate(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("objio: opening zlib stream: %w", err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("objio: inflating: %w", err)
	}
	return raw, nil
}

// Deflate compresses raw in full and returns both the compressed bytes
// and the SHA-1 OID of raw: the hash is taken over the exact serialised
// bytes before compression.
func Deflate(raw []byte) ([]byte, oid.OID, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return nil, oid.OID{}, fmt.Errorf("objio: deflating: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, oid.OID{}, fmt.Errorf("objio: closing deflate stream: %w", err)
	}
	return buf.Bytes(), oid.Sum(raw), nil
}
