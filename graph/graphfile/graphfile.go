// Package graphfile loads flow graphs from YAML or JSON documents.
//
// YAML is decoded into plain values and re-encoded as JSON, so both formats
// go through graph.DecodeGraph and are validated the same way.
package graphfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hambonesoftware/MIND/graph"
)

// Format is a graph document encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// File pairs a parsed graph with its on-disk source.
type File struct {
	Graph *graph.Graph
	Path  string
}

// FormatFor picks a format from a file extension.
func FormatFor(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(path))) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	}
	return "", false
}

// Parse decodes and validates a graph document.
func Parse(data []byte, format Format) (*graph.Graph, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("graphfile: document is empty")
	}
	switch format {
	case FormatJSON:
		return graph.DecodeGraph(data)
	case FormatYAML:
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("graphfile: decode yaml: %w", err)
		}
		normalized, err := normalize(doc)
		if err != nil {
			return nil, fmt.Errorf("graphfile: %w", err)
		}
		js, err := json.Marshal(normalized)
		if err != nil {
			return nil, fmt.Errorf("graphfile: re-encode yaml: %w", err)
		}
		return graph.DecodeGraph(js)
	default:
		return nil, fmt.Errorf("graphfile: unsupported format %q", format)
	}
}

// Encode writes g in the given format.
func Encode(g *graph.Graph, format Format) ([]byte, error) {
	js, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("graphfile: encode graph: %w", err)
	}
	switch format {
	case FormatJSON:
		return append(js, '\n'), nil
	case FormatYAML:
		var doc interface{}
		if err := json.Unmarshal(js, &doc); err != nil {
			return nil, fmt.Errorf("graphfile: encode graph: %w", err)
		}
		return yaml.Marshal(doc)
	default:
		return nil, fmt.Errorf("graphfile: unsupported format %q", format)
	}
}

// LoadFile reads a .yaml, .yml or .json graph from disk.
func LoadFile(path string) (File, error) {
	format, ok := FormatFor(path)
	if !ok {
		return File{}, fmt.Errorf("graphfile: %s: unknown extension", path)
	}
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("graphfile: stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("graphfile: %s is a directory", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("graphfile: read %s: %w", path, err)
	}
	g, err := Parse(data, format)
	if err != nil {
		return File{}, fmt.Errorf("graphfile: %s: %w", path, err)
	}
	return File{Graph: g, Path: filepath.Clean(path)}, nil
}

// LoadDir loads every graph file in dir, sorted by path. A missing
// directory yields no graphs.
func LoadDir(dir string) ([]File, error) {
	trimmed := strings.TrimSpace(dir)
	if trimmed == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(trimmed)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("graphfile: read %s: %w", trimmed, err)
	}
	var files []File
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, ok := FormatFor(entry.Name()); !ok {
			continue
		}
		f, err := LoadFile(filepath.Join(trimmed, entry.Name()))
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// normalize converts YAML-decoded values into JSON-encodable ones.
func normalize(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[k] = n
		}
		return out, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			key, ok := k.(string)
			if !ok {
				key = fmt.Sprint(k)
			}
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[key] = n
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			n, err := normalize(val)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, fmt.Errorf("non-finite number %v", t)
		}
		return t, nil
	default:
		return v, nil
	}
}
