// Package modcfg implements the restricted INI grammar shared by the
// repository config file and the .covmodule overlay, plus the modules
// overlay built on top of it.
package modcfg

import (
	"bytes"
	"fmt"
	"strings"
)

// Header identifies one section: a dotted chain of identifiers (e.g.
// "module.sep" is Path=["module","sep"]) plus an optional quoted
// subsection (e.g. `[module "core"]` is Path=["module"], Sub="core").
type Header struct {
	Path   []string
	Sub    string
	HasSub bool
}

func (h Header) key() string {
	if h.HasSub {
		return strings.Join(h.Path, ".") + "\x00" + h.Sub
	}
	return strings.Join(h.Path, ".")
}

func (h Header) String() string {
	if h.HasSub {
		return fmt.Sprintf("[%s %q]", strings.Join(h.Path, "."), h.Sub)
	}
	return fmt.Sprintf("[%s]", strings.Join(h.Path, "."))
}

type entry struct {
	key   string
	value string
}

type section struct {
	header  Header
	entries []entry
}

// Config is a parsed restricted-INI document. It preserves section and
// entry order so that re-serialising an unmodified document reproduces its
// sections and entries in the same order, and serialising after a targeted
// mutation changes only what the mutation touched. Comments and the
// original indentation and quoting are not kept.
type Config struct {
	sections []*section
}

// New returns an empty document.
func New() *Config { return &Config{} }

func (c *Config) findSection(h Header) *section {
	for _, s := range c.sections {
		if s.header.key() == h.key() {
			return s
		}
	}
	return nil
}

func (c *Config) ensureSection(h Header) *section {
	if s := c.findSection(h); s != nil {
		return s
	}
	s := &section{header: h}
	c.sections = append(c.sections, s)
	return s
}

// Sections returns the document's section headers in storage order.
func (c *Config) Sections() []Header {
	out := make([]Header, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.header
	}
	return out
}

// Value returns the first value of key within section (path, sub), if any.
func (c *Config) Value(path []string, sub, key string) (string, bool) {
	s := c.findSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	if s == nil {
		return "", false
	}
	for _, e := range s.entries {
		if e.key == key {
			return e.value, true
		}
	}
	return "", false
}

// Values returns every value recorded for key within section (path, sub),
// in insertion order (the "multivar" case, e.g. module.<name>.path).
func (c *Config) Values(path []string, sub, key string) []string {
	s := c.findSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	if s == nil {
		return nil
	}
	var out []string
	for _, e := range s.entries {
		if e.key == key {
			out = append(out, e.value)
		}
	}
	return out
}

// SetValue replaces (or creates) the single value of key within section
// (path, sub).
func (c *Config) SetValue(path []string, sub, key, value string) {
	s := c.ensureSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	for i, e := range s.entries {
		if e.key == key {
			s.entries[i].value = value
			return
		}
	}
	s.entries = append(s.entries, entry{key: key, value: value})
}

// AddValue appends another value of key within section (path, sub),
// supporting multivar keys like module.<name>.path.
func (c *Config) AddValue(path []string, sub, key, value string) {
	s := c.ensureSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	s.entries = append(s.entries, entry{key: key, value: value})
}

// RemoveValue removes the first entry matching key=value within section
// (path, sub). It reports whether anything was removed.
func (c *Config) RemoveValue(path []string, sub, key, value string) bool {
	s := c.findSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	if s == nil {
		return false
	}
	for i, e := range s.entries {
		if e.key == key && e.value == value {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveSection drops section (path, sub) entirely.
func (c *Config) RemoveSection(path []string, sub string) {
	h := Header{Path: path, Sub: sub, HasSub: sub != ""}
	for i, s := range c.sections {
		if s.header.key() == h.key() {
			c.sections = append(c.sections[:i], c.sections[i+1:]...)
			return
		}
	}
}

// IsEmpty reports whether section (path, sub) has no entries.
func (c *Config) IsEmpty(path []string, sub string) bool {
	s := c.findSection(Header{Path: path, Sub: sub, HasSub: sub != ""})
	return s == nil || len(s.entries) == 0
}

// PruneEmptySections removes every section with zero entries, the
// post-pass Dump runs after rewriting the module sections.
func (c *Config) PruneEmptySections() {
	kept := c.sections[:0]
	for _, s := range c.sections {
		if len(s.entries) > 0 {
			kept = append(kept, s)
		}
	}
	c.sections = kept
}

// Serialize renders the document back to its textual form.
func (c *Config) Serialize() []byte {
	var buf bytes.Buffer
	for _, s := range c.sections {
		buf.WriteString(s.header.String())
		buf.WriteByte('\n')
		for _, e := range s.entries {
			fmt.Fprintf(&buf, "\t%s = %s\n", e.key, quote(e.value))
		}
	}
	return buf.Bytes()
}
