// Package kbfile reads and writes knowledge bases as files.
//
// Three formats are supported: the type-tagged *.kb.json documents written
// by the desktop constructor, the native JSON document stored in the
// database, and YAML for hand editing.
package kbfile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/AbdouB/kbexpert/internal/models"
)

// Format names a file format
type Format string

const (
	FormatLegacy Format = "legacy"
	FormatJSON   Format = "json"
	FormatYAML   Format = "yaml"
)

// LegacyExt is the extension of desktop constructor files
const LegacyExt = ".kb.json"

// ParseFormat parses a format name as given on the command line
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "kb.json":
		return FormatLegacy, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown format %q (want legacy, json or yaml)", s)
}

// DetectFormat guesses the format from a file name
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, LegacyExt):
		return FormatLegacy
	case strings.HasSuffix(lower, ".yaml"), strings.HasSuffix(lower, ".yml"):
		return FormatYAML
	}
	return FormatJSON
}

// Decode parses a knowledge base. A JSON document carrying the
// __KnowledgeBase__ envelope is read as legacy whatever format is asked for.
// The result always has a fresh ID and reset run state.
func Decode(data []byte, format Format) (*models.KnowledgeBase, error) {
	var (
		kb  *models.KnowledgeBase
		err error
	)

	switch {
	case format == FormatLegacy || (format == FormatJSON && isLegacy(data)):
		kb, err = decodeLegacy(data)
	case format == FormatJSON:
		kb, err = decodeNative(data, json.Unmarshal)
	case format == FormatYAML:
		kb, err = decodeNative(data, yaml.Unmarshal)
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}

	for _, h := range kb.Hypos {
		if err := h.SetInitP(h.InitP); err != nil {
			return nil, fmt.Errorf("hypothesis %d: %w", h.ID, err)
		}
	}
	kb.Reset()
	return kb, nil
}

func decodeNative(data []byte, unmarshal func([]byte, interface{}) error) (*models.KnowledgeBase, error) {
	var doc models.KnowledgeBase
	if err := unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}

	kb := models.NewKnowledgeBase(doc.Name)
	kb.Location = doc.Location
	if doc.Signs != nil {
		kb.Signs = doc.Signs
	}
	if doc.Hypos != nil {
		kb.Hypos = doc.Hypos
	}
	for _, h := range kb.Hypos {
		if h.Signs == nil {
			h.Signs = []*models.SignValue{}
		}
	}
	return kb, nil
}

// Encode serializes a knowledge base
func Encode(kb *models.KnowledgeBase, format Format) ([]byte, error) {
	switch format {
	case FormatLegacy:
		return encodeLegacy(kb)
	case FormatJSON:
		return json.MarshalIndent(kb, "", "  ")
	case FormatYAML:
		return yaml.Marshal(kb)
	}
	return nil, fmt.Errorf("unknown format %q", format)
}

// Load reads a knowledge base file. The format follows the extension, and
// an unnamed knowledge base takes its name from the file.
func Load(path string) (*models.KnowledgeBase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	kb, err := Decode(data, DetectFormat(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if kb.Name == models.DefaultKnowledgeBaseName || kb.Name == "" {
		kb.Name = baseName(path)
	}
	if abs, err := filepath.Abs(path); err == nil {
		kb.Location = abs
	} else {
		kb.Location = path
	}
	return kb, nil
}

// Save writes a knowledge base file. An empty format follows the extension.
func Save(path string, kb *models.KnowledgeBase, format Format) error {
	if format == "" {
		format = DetectFormat(path)
	}
	data, err := Encode(kb, format)
	if err != nil {
		return fmt.Errorf("failed to encode knowledge base: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func baseName(path string) string {
	name := filepath.Base(path)
	lower := strings.ToLower(name)
	for _, ext := range []string{LegacyExt, ".json", ".yaml", ".yml"} {
		if strings.HasSuffix(lower, ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
