package modcfg

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/covdata/cov/errc"
)

// Parse reads a restricted-INI document
// (`file := (line eol)* line?`, `line := header | value | comment`).
func Parse(data []byte) (*Config, error) {
	const op = "modcfg.Parse"
	cfg := New()
	var current *section

	sc := bufio.NewScanner(bytes.NewReader(data))
	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := stripComment(sc.Text())
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "[") {
			h, err := parseHeader(line)
			if err != nil {
				return nil, errc.New(op, errc.BadSyntax, fmt.Errorf("modcfg: line %d: %w", lineNo, err))
			}
			current = cfg.ensureSection(h)
			continue
		}

		key, value, err := parseValueLine(line)
		if err != nil {
			return nil, errc.New(op, errc.BadSyntax, fmt.Errorf("modcfg: line %d: %w", lineNo, err))
		}
		if current == nil {
			return nil, errc.New(op, errc.BadSyntax, fmt.Errorf("modcfg: line %d: value %q outside any section", lineNo, key))
		}
		current.entries = append(current.entries, entry{key: key, value: value})
	}
	if err := sc.Err(); err != nil {
		return nil, errc.New(op, errc.BadSyntax, err)
	}
	return cfg, nil
}

// stripComment truncates line at the first unquoted ';' or '#'.
func stripComment(line string) string {
	inQuotes := false
	for i, r := range line {
		switch r {
		case '"':
			inQuotes = !inQuotes
		case ';', '#':
			if !inQuotes {
				return line[:i]
			}
		}
	}
	return line
}

// parseHeader parses `"[" IDENT ("." IDENT)* ("\"" TEXT "\"")? "]"`.
func parseHeader(line string) (Header, error) {
	if !strings.HasPrefix(line, "[") || !strings.HasSuffix(line, "]") {
		return Header{}, fmt.Errorf("malformed header %q", line)
	}
	body := line[1 : len(line)-1]

	if q := strings.IndexByte(body, '"'); q >= 0 {
		pathPart := strings.TrimSpace(body[:q])
		rest := body[q:]
		if !strings.HasPrefix(rest, `"`) || !strings.HasSuffix(rest, `"`) || len(rest) < 2 {
			return Header{}, fmt.Errorf("malformed subsection in header %q", line)
		}
		sub := unquote(rest)
		path := splitPath(pathPart)
		if len(path) == 0 {
			return Header{}, fmt.Errorf("empty section name in header %q", line)
		}
		return Header{Path: path, Sub: sub, HasSub: true}, nil
	}

	path := splitPath(strings.TrimSpace(body))
	if len(path) == 0 {
		return Header{}, fmt.Errorf("empty section name in header %q", line)
	}
	return Header{Path: path}, nil
}

func splitPath(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// parseValueLine parses `IDENT SP? "=" SP? token*`.
func parseValueLine(line string) (key, value string, err error) {
	eq := strings.IndexByte(line, '=')
	if eq < 0 {
		return "", "", fmt.Errorf("malformed value line %q (no '=')", line)
	}
	key = strings.TrimSpace(line[:eq])
	if key == "" {
		return "", "", fmt.Errorf("malformed value line %q (empty key)", line)
	}
	raw := strings.TrimSpace(line[eq+1:])
	return key, unquote(raw), nil
}

func unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		s = s[1 : len(s)-1]
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.ReplaceAll(s, `\\`, `\`)
	}
	return s
}

func quote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}
