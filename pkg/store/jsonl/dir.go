// Package jsonl persists transcripts as append-only JSONL files, one file
// per session, named chat_NNN.jsonl inside a single history directory.
package jsonl

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/termgpt/termgpt/pkg/store"
)

// Dir implements store.Dir over a filesystem directory.
type Dir struct {
	root string
}

func New(root string) *Dir {
	return &Dir{root: root}
}

// Open returns the transcript for id, creating the history directory and an
// empty file on first use.
func (d *Dir) Open(id string) (store.Store, error) {
	if _, ok := store.ParseID(id); !ok {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	if err := os.MkdirAll(d.root, 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	path := filepath.Join(d.root, id+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open transcript %s: %w", id, err)
	}
	return &Store{id: id, path: path, f: f}, nil
}

// IDs lists persisted session ids sorted by sequence number.
func (d *Dir) IDs() ([]string, error) {
	entries, err := os.ReadDir(d.root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history directory: %w", err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id := strings.TrimSuffix(e.Name(), ".jsonl")
		if id == e.Name() {
			continue
		}
		if _, ok := store.ParseID(id); ok {
			ids = append(ids, id)
		}
	}

	sort.Slice(ids, func(i, j int) bool {
		a, _ := store.ParseID(ids[i])
		b, _ := store.ParseID(ids[j])
		return a < b
	})
	return ids, nil
}
