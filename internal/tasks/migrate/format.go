// Package migrate moves task lists in and out of the local store as files.
//
// Three formats are supported. JSONL holds one wire representation per line,
// the same objects the remote store keeps. YAML and TOML hold the same
// records under a top-level "tasks" list, for editing by hand.
package migrate

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/tasksync/tasks/internal/tasks/schema"
)

// Format names a file format.
type Format string

const (
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
)

// Formats lists the supported formats.
var Formats = []Format{FormatJSONL, FormatYAML, FormatTOML}

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "jsonl", "ndjson":
		return FormatJSONL, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("unknown format %q (want jsonl, yaml or toml)", s)
	}
}

// FormatForPath picks a format from the file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// document is the top level of the YAML and TOML forms.
type document struct {
	Tasks []*schema.Representation `yaml:"tasks" toml:"tasks"`
}

// Export writes tasks to w in the given format, in list order.
func Export(w io.Writer, tasks []*schema.Task, format Format) error {
	reps := make([]*schema.Representation, 0, len(tasks))
	for _, task := range tasks {
		rep, err := task.Representation()
		if err != nil {
			return fmt.Errorf("failed to convert task %s: %w", schema.FormatID(task.ID), err)
		}
		reps = append(reps, rep)
	}

	switch format {
	case FormatJSONL:
		enc := json.NewEncoder(w)
		for _, rep := range reps {
			if err := enc.Encode(rep); err != nil {
				return fmt.Errorf("failed to write JSONL: %w", err)
			}
		}
		return nil

	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(document{Tasks: reps}); err != nil {
			return fmt.Errorf("failed to write YAML: %w", err)
		}
		return enc.Close()

	case FormatTOML:
		if err := toml.NewEncoder(w).Encode(document{Tasks: reps}); err != nil {
			return fmt.Errorf("failed to write TOML: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// WriteFile exports tasks to path, replacing it atomically.
func WriteFile(path string, tasks []*schema.Task, format Format) error {
	var buf bytes.Buffer
	if err := Export(&buf, tasks, format); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Read decodes representations from r.
// Nothing is validated here; the reconciler skips entries it cannot use.
func Read(r io.Reader, format Format) ([]*schema.Representation, error) {
	switch format {
	case FormatJSONL:
		return readJSONL(r)

	case FormatYAML:
		var doc document
		if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return compact(doc.Tasks), nil

	case FormatTOML:
		var doc document
		if _, err := toml.NewDecoder(r).Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
		return compact(doc.Tasks), nil

	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// ReadFile reads representations from path, choosing the format by extension.
func ReadFile(path string) ([]*schema.Representation, error) {
	format, err := FormatForPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatJSONL {
		return FromJSONL(path)
	}

	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	return Read(file, format)
}

// FromJSONL reads a JSONL file of representations.
func FromJSONL(path string) ([]*schema.Representation, error) {
	// #nosec G304 - controlled path from CLI
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open JSONL file: %w", err)
	}
	defer file.Close()

	return readJSONL(file)
}

// readJSONL decodes one representation per line. Blank lines are skipped; a
// malformed line fails the read with its line number.
func readJSONL(r io.Reader) ([]*schema.Representation, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var reps []*schema.Representation
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rep schema.Representation
		if err := json.Unmarshal(line, &rep); err != nil {
			return nil, fmt.Errorf("invalid JSON at line %d: %w", lineNum, err)
		}
		reps = append(reps, &rep)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}

	return reps, nil
}

func compact(reps []*schema.Representation) []*schema.Representation {
	out := reps[:0]
	for _, rep := range reps {
		if rep != nil {
			out = append(out, rep)
		}
	}
	return out
}
