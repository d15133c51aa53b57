// Package audit keeps a git-backed change journal for knowledge base
// entries. Every create, update and delete lands as a commit against a
// per-entry JSON snapshot, so the full edit history survives hard
// deletes and carries the operator's stated reason.
package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"curator/api/internal/store"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Change is one journal entry for a knowledge base article.
type Change struct {
	Hash      string    `json:"hash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

type snapshot struct {
	ID              int64  `json:"id"`
	ArticleTitle    string `json:"article_title"`
	ArticleSubtitle string `json:"article_subtitle"`
	ArticleBody     string `json:"article_body"`
	Category        string `json:"category"`
	Subcategory     string `json:"subcategory"`
	Keywords        string `json:"keywords"`
	ArticleURL      string `json:"article_url"`
	InternalStatus  string `json:"internal_status"`
	Visibility      string `json:"visibility"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
}

// Journal is a single git repository holding one JSON file per entry.
type Journal struct {
	dir string
	mu  sync.Mutex
}

// Open initializes the journal repository if it does not exist.
func Open(dir string) (*Journal, error) {
	j := &Journal{dir: dir}

	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return j, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat journal dir: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "entries"), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	repo, err := git.PlainInit(dir, false)
	if err != nil {
		return nil, fmt.Errorf("init journal repo: %w", err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "entries", ".gitkeep"), nil, 0o644); err != nil {
		return nil, fmt.Errorf("write placeholder: %w", err)
	}
	if _, err := worktree.Add("entries/.gitkeep"); err != nil {
		return nil, fmt.Errorf("git add placeholder: %w", err)
	}
	hash, err := worktree.Commit("Initialize audit journal", &git.CommitOptions{
		Author: journalSignature("curator"),
	})
	if err != nil {
		return nil, fmt.Errorf("commit baseline: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName("main"), hash)); err != nil {
		return nil, fmt.Errorf("set main branch ref: %w", err)
	}
	if err := repo.Storer.SetReference(plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName("main"))); err != nil {
		return nil, fmt.Errorf("set HEAD to main: %w", err)
	}
	return j, nil
}

// RecordCreate journals a freshly created entry.
func (j *Journal) RecordCreate(entry store.KBEntry, author string) error {
	return j.commitSnapshot(entry, author, fmt.Sprintf("create kb entry %d: %s", entry.ID, entry.ArticleTitle))
}

// RecordUpdate journals the state of an entry after an edit.
func (j *Journal) RecordUpdate(entry store.KBEntry, author string) error {
	return j.commitSnapshot(entry, author, fmt.Sprintf("update kb entry %d: %s", entry.ID, entry.ArticleTitle))
}

// RecordDelete removes the snapshot, keeping the reason in the commit
// message. The content stays reachable through history.
func (j *Journal) RecordDelete(id int64, reason, author string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	repo, err := git.PlainOpen(j.dir)
	if err != nil {
		return fmt.Errorf("open journal repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	path := entryPath(id)
	if _, err := worktree.Remove(path); err != nil {
		return fmt.Errorf("remove snapshot: %w", err)
	}
	if _, err := worktree.Commit(fmt.Sprintf("delete kb entry %d: %s", id, reason), &git.CommitOptions{
		Author: journalSignature(author),
	}); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

// History lists changes touching one entry, newest first.
func (j *Journal) History(id int64, limit int) ([]Change, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	repo, err := git.PlainOpen(j.dir)
	if err != nil {
		return nil, fmt.Errorf("open journal repo: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}

	path := entryPath(id)
	iter, err := repo.Log(&git.LogOptions{From: head.Hash(), FileName: &path})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	changes := make([]Change, 0, limit)
	count := 0
	err = iter.ForEach(func(commitObj *object.Commit) error {
		changes = append(changes, Change{
			Hash:      commitObj.Hash.String()[:7],
			Message:   commitObj.Message,
			Author:    commitObj.Author.Name,
			CreatedAt: commitObj.Author.When,
		})
		count++
		if limit > 0 && count >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return changes, nil
}

func (j *Journal) commitSnapshot(entry store.KBEntry, author, message string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	repo, err := git.PlainOpen(j.dir)
	if err != nil {
		return fmt.Errorf("open journal repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}

	payload, err := json.MarshalIndent(toSnapshot(entry), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := entryPath(entry.ID)
	if err := os.WriteFile(filepath.Join(j.dir, path), append(payload, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if _, err := worktree.Add(path); err != nil {
		return fmt.Errorf("git add snapshot: %w", err)
	}
	// No-op edits still get journaled.
	if _, err := worktree.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            journalSignature(author),
	}); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func toSnapshot(entry store.KBEntry) snapshot {
	return snapshot{
		ID:              entry.ID,
		ArticleTitle:    entry.ArticleTitle,
		ArticleSubtitle: entry.ArticleSubtitle,
		ArticleBody:     entry.ArticleBody,
		Category:        entry.Category,
		Subcategory:     entry.Subcategory,
		Keywords:        entry.Keywords,
		ArticleURL:      entry.ArticleURL,
		InternalStatus:  entry.InternalStatus,
		Visibility:      entry.Visibility,
		Status:          entry.Status,
		Notes:           entry.Notes,
	}
}

func entryPath(id int64) string {
	return "entries/" + strconv.FormatInt(id, 10) + ".json"
}

func journalSignature(author string) *object.Signature {
	if author == "" {
		author = "curator"
	}
	return &object.Signature{
		Name:  author,
		Email: sanitizeEmail(author) + "@curator.local",
		When:  time.Now(),
	}
}

func sanitizeEmail(input string) string {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			out = append(out, r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' {
			out = append(out, '.')
		}
	}
	if len(out) == 0 {
		return "user"
	}
	return string(out)
}
