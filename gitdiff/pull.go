// SPDX-FileCopyrightText: Copyright 2026 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package gitdiff

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Pull fast-forwards the checked out branch of the repository containing path
// from remote and returns the resulting HEAD commit. Being up to date is not
// an error.
func Pull(ctx context.Context, path, remote string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return "", fmt.Errorf("opening repository: %w", err)
	}
	if remote == "" {
		remote = git.DefaultRemoteName
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("opening work tree: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	if !head.Name().IsBranch() {
		return "", fmt.Errorf("HEAD is detached at %s", head.Hash())
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    remote,
		ReferenceName: head.Name(),
		SingleBranch:  true,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("pulling %s from %s: %w", head.Name().Short(), remote, err)
	}

	ref, err := repo.Reference(plumbing.HEAD, true)
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}
