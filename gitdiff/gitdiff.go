// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package gitdiff reports which files of a git work tree changed since a
// revision, so validation can be limited to the plugins a change touches.
package gitdiff

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNotRepository is returned when the path is not inside a git work tree.
var ErrNotRepository = errors.New("not a git repository")

// ChangeSet is the set of files that differ from a base revision.
type ChangeSet struct {
	// Base is the resolved base commit
	Base string
	// RepoRoot is the absolute work tree root
	RepoRoot string
	// Files are absolute paths of changed, added, deleted and untracked files
	Files []string
}

// Changed compares the commit named by rev with HEAD and the work tree of the
// repository containing path. Uncommitted and untracked files are included.
func Changed(path, rev string) (*ChangeSet, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening work tree: %w", err)
	}
	repoRoot := canonical(wt.Filesystem.Root())

	baseHash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", rev, err)
	}
	baseTree, err := commitTree(repo, *baseHash)
	if err != nil {
		return nil, fmt.Errorf("base %s: %w", rev, err)
	}

	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolving HEAD: %w", err)
	}
	headTree, err := commitTree(repo, head.Hash())
	if err != nil {
		return nil, fmt.Errorf("HEAD: %w", err)
	}

	changes, err := object.DiffTree(baseTree, headTree)
	if err != nil {
		return nil, fmt.Errorf("diffing %s..HEAD: %w", rev, err)
	}

	var names []string
	for _, c := range changes {
		if c.From.Name != "" {
			names = append(names, c.From.Name)
		}
		if c.To.Name != "" {
			names = append(names, c.To.Name)
		}
	}

	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("reading work tree status: %w", err)
	}
	for name, s := range status {
		if s.Worktree != git.Unmodified || s.Staging != git.Unmodified {
			names = append(names, name)
		}
	}

	files := make([]string, 0, len(names))
	for _, n := range names {
		files = append(files, filepath.Join(repoRoot, filepath.FromSlash(n)))
	}
	slices.Sort(files)

	return &ChangeSet{
		Base:     baseHash.String(),
		RepoRoot: repoRoot,
		Files:    slices.Compact(files),
	}, nil
}

func commitTree(repo *git.Repository, hash plumbing.Hash) (*object.Tree, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit: %w", err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("failed to get tree: %w", err)
	}
	return tree, nil
}

// Touches reports whether any changed file is dir or lies under it.
func (c *ChangeSet) Touches(dir string) bool {
	if c == nil {
		return true
	}
	dir = canonical(dir)
	prefix := dir + string(filepath.Separator)
	for _, f := range c.Files {
		if f == dir || strings.HasPrefix(f, prefix) {
			return true
		}
	}
	return false
}

func canonical(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		p = abs
	}
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}
