package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var keyComments = map[string]string{
	KeyOutput:            "Directory the converted notes are written to.",
	KeyFormat:            "Export format: " + strings.Join(FormatNames(), ", ") + ".",
	KeyLogLevel:          "Log level: debug, info, warn or error.",
	KeyPathSyntax:        "Path rules for links and file names: auto, posix or windows.",
	KeyAbsoluteLinks:     "Rewrite links to files that cannot be copied as absolute paths.",
	KeyAttachmentFolder:  "Folder, inside each notebook, that receives attachments.",
	KeyPandocPath:        "pandoc executable.",
	KeyFrontMatter:       "Prepend YAML front matter with title, tags and timestamps.",
	KeyRawRecords:        "Keep a JSON sidecar of every note record under _nsx/raw.",
	KeyIgnoreLinks:       "Glob patterns of link targets to leave untouched.",
	KeyMaxFileNameLength: "Longest file name produced.",
}

// Template renders cfg as commented YAML.
func Template(cfg Config) ([]byte, error) {
	var doc yaml.Node
	if err := doc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	doc.HeadComment = "nsx-to-markdown configuration"
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if c, ok := keyComments[key.Value]; ok {
			key.HeadComment = c
		}
	}
	out, err := yaml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return out, nil
}

// WriteDefault writes the default configuration to path unless a file is
// already there. It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("stat config file: %w", err)
	}
	b, err := Template(Default())
	if err != nil {
		return false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return false, fmt.Errorf("write config file: %w", err)
	}
	return true, nil
}
