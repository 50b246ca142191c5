package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// keyComments documents the top-level keys of a generated config file.
var keyComments = map[string]string{
	"layout":      "Database layout: projects (projects + tasks databases) or demands (single demands database).",
	"snapshot":    "CSV snapshot written by sync and read by serve and report.",
	"cache":       "SQLite query cache used by the dashboard.",
	"annotations": "Hand-written report notes (TOML).",
	"notion":      "Workspace access. The token and ids may also come from NOTION_TOKEN and NOTION_DB_ID_*.",
	"anthropic":   "Comment summaries for the report. The key may also come from ANTHROPIC_API_KEY.",
	"dashboard":   "statusboard serve. sync_interval 0s disables scheduled syncs.",
	"report":      "Defaults for statusboard report.",
	"log":         "Log to a rotating file when file is set; tee also keeps stderr.",
}

// Encode writes cfg as YAML. When comments is set, top-level keys are
// preceded by a short description.
func Encode(w io.Writer, cfg Config, comments bool) error {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if comments && doc.Kind == yaml.MappingNode {
		for i := 0; i+1 < len(doc.Content); i += 2 {
			key := doc.Content[i]
			if c, ok := keyComments[key.Value]; ok {
				key.HeadComment = c
			}
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return enc.Close()
}

// WriteDefault writes a commented default config to path. An existing file
// is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	var buf bytes.Buffer
	if err := Encode(&buf, *Default(), true); err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	// The file may later hold the token.
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
