package store

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/hyperjump/tana/internal/models"
	"github.com/hyperjump/tana/internal/vector"
)

const (
	workspacesDir = "workspaces"
	indexFile     = "index.bin"
	ledgerFile    = "metadata.msgpack"
	tmpSuffix     = ".tmp"
)

var (
	// rawWorkspaceIDPattern is what callers may pass in; ParseWorkspaceID folds it to lower case.
	rawWorkspaceIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)
	workspaceIDPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
)

// WorkspaceID names an isolated workspace. It is used as a directory name,
// so only lower-case ids matching ^[a-z0-9][a-z0-9_-]{0,63}$ are valid.
// Case-insensitive filesystems would otherwise map "Alpha" and "alpha" to
// one directory.
type WorkspaceID string

// ParseWorkspaceID validates s and returns its canonical lower-case form.
// Ids that differ only in ASCII case name the same workspace.
func ParseWorkspaceID(s string) (WorkspaceID, error) {
	if !rawWorkspaceIDPattern.MatchString(s) {
		return "", fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, s)
	}
	id := WorkspaceID(strings.ToLower(s))
	if err := id.Validate(); err != nil {
		return "", err
	}
	return id, nil
}

// WorkspaceIDFromInt returns the decimal form of n.
func WorkspaceIDFromInt(n int64) WorkspaceID {
	return WorkspaceID(strconv.FormatInt(n, 10))
}

// Validate reports whether id is usable.
func (id WorkspaceID) Validate() error {
	if !workspaceIDPattern.MatchString(string(id)) {
		return fmt.Errorf("%w: %q", ErrInvalidWorkspaceID, string(id))
	}
	return nil
}

func (id WorkspaceID) String() string { return string(id) }

// workspace is the resident state of one workspace: the vector index and its
// parallel ledger. ledger[i] describes the vector at index position i.
type workspace struct {
	id  WorkspaceID
	dir string

	mu         sync.RWMutex
	index      vector.Index
	ledger     []models.ChunkRecord
	generation string
}

func (w *workspace) indexPath() string  { return filepath.Join(w.dir, indexFile) }
func (w *workspace) ledgerPath() string { return filepath.Join(w.dir, ledgerFile) }

func workspaceDir(dataRoot string, id WorkspaceID) string {
	return filepath.Join(dataRoot, workspacesDir, "workspace_"+string(id))
}
