package gitutil

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/user/sales-dashboard-go/internal/models"
)

// ErrNotRepository is returned when a path is not inside a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// OpenRepository opens the git repository containing path, searching parent
// directories for the .git entry.
func OpenRepository(path string) (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// GetHeadCommit retrieves the commit object for the repository's HEAD.
func GetHeadCommit(repo *git.Repository) (*object.Commit, error) {
	headRef, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to get HEAD reference: %w", err)
	}

	commit, err := repo.CommitObject(headRef.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to get commit object for HEAD (%s): %w", headRef.Hash(), err)
	}
	return commit, nil
}

// GetRepoBranch returns the current branch name, or the commit SHA with a
// "(detached)" suffix when HEAD is not a branch.
func GetRepoBranch(repo *git.Repository, headCommit *object.Commit) (string, error) {
	headRef, err := repo.Head()
	if err != nil {
		return headCommit.Hash.String() + " (detached - error getting head)", err
	}

	if headRef.Name().IsBranch() {
		return headRef.Name().Short(), nil
	}
	return headCommit.Hash.String() + " (detached)", nil
}

// Revision describes HEAD of the working tree that contains path.
func Revision(path string) (*models.GitRevision, error) {
	repo, err := OpenRepository(path)
	if err != nil {
		return nil, err
	}
	head, err := GetHeadCommit(repo)
	if err != nil {
		return nil, err
	}
	// Branch lookup only fails when HEAD does, which GetHeadCommit already checked.
	branch, _ := GetRepoBranch(repo, head)

	return &models.GitRevision{
		SHA:     head.Hash.String(),
		Branch:  branch,
		Date:    head.Committer.When,
		Author:  fmt.Sprintf("%s (%s)", head.Author.Name, head.Author.Email),
		Message: strings.Split(head.Message, "\n")[0],
	}, nil
}
