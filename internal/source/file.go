package source

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/metalagman/refiner/internal/backlog"
	"gopkg.in/yaml.v3"
)

// Document is the on-disk YAML layout of one project backlog.
type Document struct {
	Project    backlog.Project        `yaml:"project"`
	Challenges []backlog.ChallengeRow `yaml:"challenges"`
	Insights   []backlog.InsightRow   `yaml:"insights"`
	Owners     []backlog.Owner        `yaml:"owners"`
	Ownerships []backlog.Ownership    `yaml:"ownerships"`
}

// Rows converts the document into source rows.
func (d Document) Rows() backlog.Rows {
	return backlog.Rows{
		Project:    d.Project,
		Challenges: d.Challenges,
		Insights:   d.Insights,
		Owners:     d.Owners,
		Ownerships: d.Ownerships,
	}
}

// ParseYAML decodes a backlog document. Unknown keys are rejected.
func ParseYAML(data []byte) (backlog.Rows, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return backlog.Rows{}, fmt.Errorf("backlog document is empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return backlog.Rows{}, fmt.Errorf("decode backlog document: %w", err)
	}
	if strings.TrimSpace(doc.Project.ID) == "" {
		return backlog.Rows{}, fmt.Errorf("backlog document: project.id is required")
	}
	return doc.Rows(), nil
}

// ReadYAML reads and parses a backlog document from disk.
func ReadYAML(path string) (backlog.Rows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("read %s: %w", path, err)
	}
	rows, err := ParseYAML(data)
	if err != nil {
		return backlog.Rows{}, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// File serves a single project from a YAML document. The file is re-read on
// every load.
type File struct {
	path string
}

// NewFile returns a source over the YAML document at path.
func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Load(_ context.Context, projectID string) (backlog.Rows, error) {
	rows, err := ReadYAML(f.path)
	if err != nil {
		return backlog.Rows{}, err
	}
	if rows.Project.ID != projectID {
		return backlog.Rows{}, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}
	return rows, nil
}
