// Package modlist reads and writes the ordered mod-list manifest
// (modlist.txt): one entry per line, prefix-coded as enabled (+), disabled
// (-), or locked (*). Index 0 is highest priority.
package modlist

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const separatorSuffix = "_separator"

// Entry is one line of modlist.txt.
type Entry struct {
	Name        string
	Enabled     bool
	Locked      bool
	IsSeparator bool
}

// DisplayName strips the "_separator" suffix for separator entries.
func (e Entry) DisplayName() string {
	if e.IsSeparator && strings.HasSuffix(e.Name, separatorSuffix) {
		return strings.TrimSuffix(e.Name, separatorSuffix)
	}
	return e.Name
}

func isSeparatorName(name string) bool {
	return strings.HasSuffix(name, separatorSuffix)
}

// Read parses modlist.txt and returns entries in file order (index 0 =
// highest priority). A missing file returns an empty, non-error result.
// Blank lines and lines not starting with +, -, or * are ignored.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading modlist %s: %w", path, err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		prefix, name := line[0], line[1:]
		switch prefix {
		case '+':
			entries = append(entries, Entry{Name: name, Enabled: true, IsSeparator: isSeparatorName(name)})
		case '-':
			if isSeparatorName(name) {
				entries = append(entries, Entry{Name: name, Enabled: true, Locked: true, IsSeparator: true})
			} else {
				entries = append(entries, Entry{Name: name})
			}
		case '*':
			entries = append(entries, Entry{Name: name, Enabled: true, Locked: true})
		default:
			// unknown lead character, ignore
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading modlist %s: %w", path, err)
	}
	return entries, nil
}

// Write serialises entries back to modlist.txt, creating parent directories
// as needed. Separators are always re-emitted with a "-" prefix regardless
// of how they were read; the file ends with exactly one trailing newline
// iff there is at least one entry.
func Write(path string, entries []Entry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating modlist directory: %w", err)
	}

	var b strings.Builder
	for _, e := range entries {
		var prefix byte
		switch {
		case e.IsSeparator:
			prefix = '-'
		case e.Locked:
			prefix = '*'
		case e.Enabled:
			prefix = '+'
		default:
			prefix = '-'
		}
		b.WriteByte(prefix)
		b.WriteString(e.Name)
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("writing modlist %s: %w", path, err)
	}
	return nil
}

// Prepend adds name at the top of modlist.txt (highest priority), moving an
// existing entry with the same name to the top if one is present.
func Prepend(path, name string, enabled bool) error {
	entries, err := Read(path)
	if err != nil {
		return err
	}
	filtered := entries[:0:0]
	for _, e := range entries {
		if e.Name != name {
			filtered = append(filtered, e)
		}
	}
	entries = append([]Entry{{Name: name, Enabled: enabled}}, filtered...)
	return Write(path, entries)
}
