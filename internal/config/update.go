package config

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rileyhilliard/rpod/internal/errors"
	"gopkg.in/yaml.v3"
)

// LockTimeout bounds how long a config write waits for another rpod to finish.
var LockTimeout = 5 * time.Second

// AddConnection writes a connection into the config file, replacing one of
// the same name. With makeDefault, or when it is the first connection, it
// also becomes the default. Comments in the file are preserved.
func AddConnection(path, name string, conn Connection, makeDefault bool) error {
	name = strings.ToLower(name)
	if err := ValidateConnectionName(name); err != nil {
		return err
	}
	if err := validateConnection(name, conn); err != nil {
		return err
	}

	return editFile(path, func(doc *yaml.Node) error {
		conns := ensureMapValue(doc, "connections")
		first := len(conns.Content) == 0

		var value yaml.Node
		if err := value.Encode(conn); err != nil {
			return err
		}
		setMapValue(conns, name, &value)

		if makeDefault || first {
			setMapValue(doc, "default", scalar(name))
		}
		return nil
	})
}

// RemoveConnection deletes a connection. If it was the default, the default is cleared.
func RemoveConnection(path, name string) error {
	name = strings.ToLower(name)
	return editFile(path, func(doc *yaml.Node) error {
		conns := findMapValue(doc, "connections")
		if conns == nil || !deleteMapKey(conns, name) {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("No connection named '%s'", name),
				"List connections with: rpod connection list")
		}
		if def := findMapValue(doc, "default"); def != nil && def.Value == name {
			deleteMapKey(doc, "default")
		}
		return nil
	})
}

// SetDefault makes an existing connection the default.
func SetDefault(path, name string) error {
	name = strings.ToLower(name)
	return editFile(path, func(doc *yaml.Node) error {
		conns := findMapValue(doc, "connections")
		if conns == nil || findMapValue(conns, name) == nil {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("No connection named '%s'", name),
				"Add it first with: rpod connection add "+name+" ssh://user@host")
		}
		setMapValue(doc, "default", scalar(name))
		return nil
	})
}

// editFile runs fn on the document mapping of the config file under an
// exclusive file lock, then writes the result back atomically. A missing
// file starts as an empty version 1 document.
func editFile(path string, fn func(doc *yaml.Node) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Can't create the config directory", "Check permissions on "+filepath.Dir(path))
	}

	lock := flock.New(path + ".lock")
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Another rpod is updating the config",
			"Try again in a moment. If nothing else is running, delete "+path+".lock")
	}
	defer func() { _ = lock.Unlock() }()

	root, err := readDocument(path)
	if err != nil {
		return err
	}
	doc := root.Content[0]
	if err := fn(doc); err != nil {
		return err
	}

	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	encoder.Close()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func readDocument(path string) (*yaml.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var root yaml.Node
	if len(bytes.TrimSpace(data)) > 0 {
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to parse config file", "Fix the YAML syntax in "+path)
		}
	}
	if root.Kind == 0 {
		root = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{
			Kind: yaml.MappingNode,
			Tag:  "!!map",
			Content: []*yaml.Node{
				scalar("version"),
				{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(CurrentConfigVersion)},
			},
		}}}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New(errors.ErrConfig,
			"Expected a mapping at the top of the config file", "Check "+path)
	}
	return &root, nil
}

func scalar(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

// findMapValue finds a value in a mapping node by key name.
func findMapValue(node *yaml.Node, key string) *yaml.Node {
	if node.Kind != yaml.MappingNode {
		return nil
	}

	for i := 0; i < len(node.Content)-1; i += 2 {
		keyNode := node.Content[i]
		valueNode := node.Content[i+1]

		if keyNode.Kind == yaml.ScalarNode && keyNode.Value == key {
			return valueNode
		}
	}

	return nil
}

// ensureMapValue returns the mapping under key, creating it when missing.
// A key with a null value is replaced by an empty mapping.
func ensureMapValue(node *yaml.Node, key string) *yaml.Node {
	if v := findMapValue(node, key); v != nil && v.Kind == yaml.MappingNode {
		return v
	}
	m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	setMapValue(node, key, m)
	return m
}

// setMapValue replaces the value under key, or appends the pair.
// Comments attached to an existing key's value are kept.
func setMapValue(node *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			old := node.Content[i+1]
			value.HeadComment, value.LineComment, value.FootComment = old.HeadComment, old.LineComment, old.FootComment
			node.Content[i+1] = value
			return
		}
	}
	node.Content = append(node.Content, scalar(key), value)
}

// deleteMapKey removes key from a mapping and reports whether it was there.
func deleteMapKey(node *yaml.Node, key string) bool {
	for i := 0; i < len(node.Content)-1; i += 2 {
		if node.Content[i].Value == key {
			node.Content = append(node.Content[:i], node.Content[i+2:]...)
			return true
		}
	}
	return false
}
