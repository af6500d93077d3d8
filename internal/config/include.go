package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const includeTag = "!include"

// ExpandIncludes replaces `!include <path>` values with the document at path.
// An included sequence inside a sequence is spliced into it, so table lists
// can be kept in their own files. baseDir resolves relative paths.
func ExpandIncludes(raw []byte, baseDir string) ([]byte, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return raw, nil
	}
	root := doc.Content[0]
	if err := expandNode(root, baseDir, map[string]struct{}{}); err != nil {
		return nil, err
	}
	return yaml.Marshal(root)
}

func expandNode(n *yaml.Node, baseDir string, seen map[string]struct{}) error {
	if n.Tag == includeTag {
		inc, err := loadIncluded(n, baseDir, seen)
		if err != nil {
			return err
		}
		*n = *inc
		return nil
	}

	switch n.Kind {
	case yaml.MappingNode:
		for i := 1; i < len(n.Content); i += 2 {
			if err := expandNode(n.Content[i], baseDir, seen); err != nil {
				return err
			}
		}
	case yaml.SequenceNode:
		out := make([]*yaml.Node, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Tag == includeTag {
				inc, err := loadIncluded(c, baseDir, seen)
				if err != nil {
					return err
				}
				if inc.Kind == yaml.SequenceNode {
					out = append(out, inc.Content...)
				} else {
					out = append(out, inc)
				}
				continue
			}
			if err := expandNode(c, baseDir, seen); err != nil {
				return err
			}
			out = append(out, c)
		}
		n.Content = out
	}
	return nil
}

func loadIncluded(n *yaml.Node, baseDir string, seen map[string]struct{}) (*yaml.Node, error) {
	if n.Kind != yaml.ScalarNode || n.Value == "" {
		return nil, errors.New("!include expects a file path")
	}
	p := n.Value
	if !filepath.IsAbs(p) {
		p = filepath.Join(baseDir, p)
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, err
	}
	if _, ok := seen[abs]; ok {
		return nil, fmt.Errorf("include cycle detected for %s", abs)
	}
	seen[abs] = struct{}{}
	defer delete(seen, abs)

	b, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("included file not found: %s", n.Value)
		}
		return nil, err
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML in included file %s: %w", abs, err)
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}, nil
	}
	root := doc.Content[0]
	if err := expandNode(root, filepath.Dir(abs), seen); err != nil {
		return nil, err
	}
	return root, nil
}
