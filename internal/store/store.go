// Package store persists multibranch state on the local filesystem.
//
// Layout under the state directory:
//
//	<root>/<project>/state.yaml                      parent state
//	<root>/<project>/template/config.yaml            template configuration
//	<root>/<project>/branches/<encoded>/config.yaml  one child
//	<root>/<project>/branches/<encoded>/builds.yaml  build requests of a child
//	<root>/<project>/sync-branches.log               pass reports
//	<root>/.locks/<project>.lock                     project lock
//
// The template and branches namespaces never overlap. Every blob write is
// atomic, so a reader sees either the old or the new content of a file.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/giantswarm/multibranch/pkg/logging"
)

const (
	StateFile       = "state.yaml"
	TemplateDirName = "template"
	BranchesDirName = "branches"
	ConfigFile      = "config.yaml"
	BuildsFile      = "builds.yaml"
	SyncLogFile     = "sync-branches.log"
	filePerm        = 0o644
	directoryPerm   = 0o755
)

// ErrNotFound is returned when a blob does not exist.
var ErrNotFound = errors.New("not found")

// DecodeError reports a blob that exists but cannot be decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Store reads and writes project state below a root directory.
type Store struct {
	root string

	// logMu serializes appends to sync logs.
	logMu sync.Mutex
}

// New creates a store rooted at root. The directory is created lazily.
func New(root string) *Store {
	return &Store{root: root}
}

// Root returns the state directory.
func (s *Store) Root() string {
	return s.root
}

// ProjectDir returns the directory of a project.
func (s *Store) ProjectDir(project string) string {
	return filepath.Join(s.root, project)
}

// TemplateDir returns the template directory of a project.
func (s *Store) TemplateDir(project string) string {
	return filepath.Join(s.root, project, TemplateDirName)
}

// BranchDir returns the directory of one child.
func (s *Store) BranchDir(project, name string) string {
	return filepath.Join(s.root, project, BranchesDirName, name)
}

// ReadState decodes the parent state of project into v.
func (s *Store) ReadState(project string, v any) error {
	if err := validateName(project); err != nil {
		return err
	}
	return readYAML(filepath.Join(s.ProjectDir(project), StateFile), v)
}

// WriteState persists the parent state of project.
func (s *Store) WriteState(project string, v any) error {
	if err := validateName(project); err != nil {
		return err
	}
	return writeYAML(filepath.Join(s.ProjectDir(project), StateFile), v)
}

// ReadTemplate decodes the template configuration of project into v.
func (s *Store) ReadTemplate(project string, v any) error {
	if err := validateName(project); err != nil {
		return err
	}
	return readYAML(filepath.Join(s.TemplateDir(project), ConfigFile), v)
}

// WriteTemplate persists the template configuration of project.
func (s *Store) WriteTemplate(project string, v any) error {
	if err := validateName(project); err != nil {
		return err
	}
	return writeYAML(filepath.Join(s.TemplateDir(project), ConfigFile), v)
}

// ReadBranch decodes file of child name into v.
func (s *Store) ReadBranch(project, name, file string, v any) error {
	if err := validateNames(project, name); err != nil {
		return err
	}
	return readYAML(filepath.Join(s.BranchDir(project, name), file), v)
}

// WriteBranch persists file of child name.
func (s *Store) WriteBranch(project, name, file string, v any) error {
	if err := validateNames(project, name); err != nil {
		return err
	}
	return writeYAML(filepath.Join(s.BranchDir(project, name), file), v)
}

// ListBranches returns the names of the child directories of project in
// lexical order. A project without children yields an empty list.
func (s *Store) ListBranches(project string) ([]string, error) {
	if err := validateName(project); err != nil {
		return nil, err
	}
	return listDirs(filepath.Join(s.ProjectDir(project), BranchesDirName))
}

// HasBranch reports whether child name of project exists.
func (s *Store) HasBranch(project, name string) bool {
	if validateNames(project, name) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.BranchDir(project, name), ConfigFile))
	return err == nil
}

// ListProjects returns the names of every project directory.
func (s *Store) ListProjects() ([]string, error) {
	dirs, err := listDirs(s.root)
	if err != nil {
		return nil, err
	}
	projects := dirs[:0]
	for _, name := range dirs {
		if name != LocksDirName {
			projects = append(projects, name)
		}
	}
	return projects, nil
}

// RemoveBranch deletes the directory of child name. Removing a missing
// child is not an error.
func (s *Store) RemoveBranch(project, name string) error {
	if err := validateNames(project, name); err != nil {
		return err
	}
	dir := s.BranchDir(project, name)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	logging.Debug("Store", "Removed %s", dir)
	return nil
}

// RemoveProject deletes everything stored for project.
func (s *Store) RemoveProject(project string) error {
	if err := validateName(project); err != nil {
		return err
	}
	dir := s.ProjectDir(project)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove %s: %w", dir, err)
	}
	logging.Debug("Store", "Removed %s", dir)
	return nil
}

// AppendLog appends v as a YAML document to the sync log of project.
func (s *Store) AppendLog(project string, v any) error {
	if err := validateName(project); err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode log entry: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}

	s.logMu.Lock()
	defer s.logMu.Unlock()

	dir := s.ProjectDir(project)
	if err := os.MkdirAll(dir, directoryPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	f, err := os.OpenFile(filepath.Join(dir, SyncLogFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadLog returns the raw sync log of project.
func (s *Store) ReadLog(project string) ([]byte, error) {
	if err := validateName(project); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.ProjectDir(project), SyncLogFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", path, ErrNotFound)
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), directoryPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(path), err)
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	// atomic.WriteFile leaves new files with the temp file's mode.
	if err := os.Chmod(path, filePerm); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", path, err)
	}

	logging.Debug("Store", "Wrote %s", path)
	return nil
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func validateNames(names ...string) error {
	for _, name := range names {
		if err := validateName(name); err != nil {
			return err
		}
	}
	return nil
}

// validateName rejects names that would escape their directory.
func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("name cannot be empty")
	case name == "." || name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("invalid name %q: contains a path separator", name)
	}
	return nil
}
