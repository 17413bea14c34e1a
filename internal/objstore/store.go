// Package objstore maps record-level operations onto the repository's own
// object database: one blob per record, one flat tree per snapshot, one
// commit per mutation, and a single mutable reference tracking the current
// state. The commit chain is the audit log; there is no separate journal.
package objstore

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage"

	"github.com/gittask/gittask/internal/debug"
)

// now is swappable for deterministic commit timestamps in tests.
var now = time.Now

// DefaultRef is the reference the task database lives under unless
// overridden by the task.ref configuration key.
const DefaultRef = "refs/tasks/tasks"

// RefConfigKey is the repository configuration key holding the ref path.
const RefConfigKey = "task.ref"

// Store wraps an open git repository and exposes the tree/blob/commit
// plumbing needed by the task store. It holds no state beyond the
// repository handle; every operation re-reads the reference.
type Store struct {
	repo *git.Repository
}

// Edit describes one tree mutation. A nil Content removes the entry,
// anything else inserts or replaces it.
type Edit struct {
	Name    string
	Content []byte
}

// Open opens the repository containing path, walking up to find the
// .git directory the way the git binary does.
func Open(path string) (*Store, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
	}
	return &Store{repo: repo}, nil
}

// New wraps an already open repository.
func New(repo *git.Repository) *Store {
	return &Store{repo: repo}
}

// RefName resolves the configured reference path, defaulting to
// refs/tasks/tasks.
func (s *Store) RefName() (plumbing.ReferenceName, error) {
	v, err := s.ConfigValue(RefConfigKey)
	if err != nil {
		return "", err
	}
	if v == "" {
		return plumbing.ReferenceName(DefaultRef), nil
	}
	return plumbing.ReferenceName(v), nil
}

// head returns the current commit the task ref points at.
// ErrRefNotFound means the store is empty, not broken.
func (s *Store) head() (*plumbing.Reference, error) {
	name, err := s.RefName()
	if err != nil {
		return nil, err
	}
	ref, err := s.repo.Reference(name, true)
	if err == plumbing.ErrReferenceNotFound {
		return nil, fmt.Errorf("%w: %s", ErrRefNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", name, err)
	}
	return ref, nil
}

// currentTree dereferences the task ref to its tree. Both return values
// are nil with ErrRefNotFound when no task was ever committed.
func (s *Store) currentTree() (*object.Tree, *plumbing.Reference, error) {
	ref, err := s.head()
	if err != nil {
		return nil, nil, err
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, nil, fmt.Errorf("reading commit %s: %w", ref.Hash(), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, nil, fmt.Errorf("reading tree of %s: %w", ref.Hash(), err)
	}
	return tree, ref, nil
}

// Walk iterates every entry of the current tree in order, stopping early
// when fn returns stop=true. An empty store walks nothing and returns nil.
func (s *Store) Walk(fn func(name string, content []byte) (stop bool, err error)) error {
	tree, _, err := s.currentTree()
	if err != nil {
		if isEmpty(err) {
			return nil
		}
		return err
	}
	for _, entry := range tree.Entries {
		content, err := s.readBlob(entry.Hash)
		if err != nil {
			return fmt.Errorf("reading entry %s: %w", entry.Name, err)
		}
		stop, err := fn(entry.Name, content)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
	return nil
}

// Read returns the contents of the named entry. Absence is a normal
// outcome, reported through the bool.
func (s *Store) Read(name string) ([]byte, bool, error) {
	var found []byte
	err := s.Walk(func(entry string, content []byte) (bool, error) {
		if entry != name {
			return false, nil
		}
		found = content
		return true, nil
	})
	if err != nil {
		return nil, false, err
	}
	return found, found != nil, nil
}

// Names returns every entry name in the current tree.
func (s *Store) Names() ([]string, error) {
	tree, _, err := s.currentTree()
	if err != nil {
		if isEmpty(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, 0, len(tree.Entries))
	for _, entry := range tree.Entries {
		names = append(names, entry.Name)
	}
	return names, nil
}

// Apply builds a new tree from the current one plus the given edits,
// commits it with the configured identity and advances the task ref.
// The ref update is the sole transaction boundary: either it moves and
// every edit becomes visible, or nothing does. The update is guarded by
// the expected previous ref value, so a concurrent writer surfaces as
// ErrStaleRef instead of silently clobbering history.
func (s *Store) Apply(message string, edits ...Edit) error {
	if len(edits) == 0 {
		return nil
	}

	entries := map[string]plumbing.Hash{}
	tree, oldRef, err := s.currentTree()
	switch {
	case err == nil:
		for _, e := range tree.Entries {
			entries[e.Name] = e.Hash
		}
	case isEmpty(err):
		oldRef = nil // first write, no parent
	default:
		return err
	}

	for _, edit := range edits {
		if edit.Content == nil {
			delete(entries, edit.Name)
			continue
		}
		hash, err := s.writeBlob(edit.Content)
		if err != nil {
			return fmt.Errorf("writing blob for %s: %w", edit.Name, err)
		}
		entries[edit.Name] = hash
	}

	treeHash, err := s.writeTree(entries)
	if err != nil {
		return err
	}

	sig, err := s.Signature()
	if err != nil {
		return err
	}

	commit := &object.Commit{
		Author:    sig,
		Committer: sig,
		Message:   message,
		TreeHash:  treeHash,
	}
	if oldRef != nil {
		commit.ParentHashes = []plumbing.Hash{oldRef.Hash()}
	}
	commitHash, err := s.writeObject(commit)
	if err != nil {
		return fmt.Errorf("writing commit: %w", err)
	}

	name, err := s.RefName()
	if err != nil {
		return err
	}
	newRef := plumbing.NewHashReference(name, commitHash)
	if err := s.refStorer().CheckAndSetReference(newRef, oldRef); err != nil {
		return fmt.Errorf("%w: %v", ErrStaleRef, err)
	}
	debug.Logf("objstore: %s -> %s (%q, %d edit(s))", name, commitHash, message, len(edits))
	return nil
}

// RefPath returns the configured ref path (the raw config value, or the
// default when unset).
func (s *Store) RefPath() (string, error) {
	name, err := s.RefName()
	return string(name), err
}

// SetRefPath updates the task.ref configuration key. When relocate is
// true and the store already has history, the current head commit is
// moved to the new ref and the old ref is deleted, so the database keeps
// its history instead of starting fresh.
func (s *Store) SetRefPath(newPath string, relocate bool) error {
	oldRef, err := s.head()
	if err != nil && !isEmpty(err) {
		return err
	}

	if err := s.SetConfigValue(RefConfigKey, newPath); err != nil {
		return err
	}

	if relocate && oldRef != nil {
		moved := plumbing.NewHashReference(plumbing.ReferenceName(newPath), oldRef.Hash())
		if err := s.refStorer().SetReference(moved); err != nil {
			return fmt.Errorf("moving %s to %s: %w", oldRef.Name(), newPath, err)
		}
		if err := s.refStorer().RemoveReference(oldRef.Name()); err != nil {
			return fmt.Errorf("removing %s: %w", oldRef.Name(), err)
		}
	}
	return nil
}

// Remotes returns the URLs of the configured remotes, optionally
// restricted to one remote by name.
func (s *Store) Remotes(name string) ([]string, error) {
	remotes, err := s.repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("listing remotes: %w", err)
	}
	var urls []string
	for _, r := range remotes {
		cfg := r.Config()
		if name != "" && cfg.Name != name {
			continue
		}
		urls = append(urls, cfg.URLs...)
	}
	return urls, nil
}

// Signature derives the commit identity from the repository configuration
// (local, then global, then system scope).
func (s *Store) Signature() (object.Signature, error) {
	cfg, err := s.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return object.Signature{}, fmt.Errorf("reading config: %w", err)
	}
	if cfg.User.Name == "" || cfg.User.Email == "" {
		return object.Signature{}, ErrNoIdentity
	}
	return object.Signature{
		Name:  cfg.User.Name,
		Email: cfg.User.Email,
		When:  now(),
	}, nil
}

// ConfigValue reads a dotted git configuration key (section.key or
// section.subsection.key), merging local, global and system scopes.
// A missing key yields the empty string, not an error.
func (s *Store) ConfigValue(key string) (string, error) {
	cfg, err := s.repo.ConfigScoped(config.SystemScope)
	if err != nil {
		return "", fmt.Errorf("reading config: %w", err)
	}
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return "", err
	}
	sec := cfg.Raw.Section(section)
	if subsection != "" {
		return sec.Subsection(subsection).Option(option), nil
	}
	return sec.Option(option), nil
}

// SetConfigValue writes a dotted git configuration key to the local
// repository configuration.
func (s *Store) SetConfigValue(key, value string) error {
	cfg, err := s.repo.Config()
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	section, subsection, option, err := splitKey(key)
	if err != nil {
		return err
	}
	sec := cfg.Raw.Section(section)
	if subsection != "" {
		sec.Subsection(subsection).SetOption(option, value)
	} else {
		sec.SetOption(option, value)
	}
	if err := s.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func splitKey(key string) (section, subsection, option string, err error) {
	parts := strings.Split(key, ".")
	if len(parts) < 2 {
		return "", "", "", fmt.Errorf("invalid configuration key: %s", key)
	}
	section = parts[0]
	option = parts[len(parts)-1]
	if len(parts) > 2 {
		subsection = strings.Join(parts[1:len(parts)-1], ".")
	}
	return section, subsection, option, nil
}

func (s *Store) refStorer() storage.Storer {
	return s.repo.Storer
}

func (s *Store) writeBlob(content []byte) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return plumbing.ZeroHash, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

// writeTree encodes a flat tree with entries sorted the way git sorts
// them. Every entry is a regular blob; the store never nests trees.
func (s *Store) writeTree(entries map[string]plumbing.Hash) (plumbing.Hash, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{}
	for _, name := range names {
		tree.Entries = append(tree.Entries, object.TreeEntry{
			Name: name,
			Mode: filemode.Regular,
			Hash: entries[name],
		})
	}
	hash, err := s.writeObject(tree)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("writing tree: %w", err)
	}
	return hash, nil
}

type encodable interface {
	Encode(plumbing.EncodedObject) error
}

func (s *Store) writeObject(o encodable) (plumbing.Hash, error) {
	obj := s.repo.Storer.NewEncodedObject()
	if err := o.Encode(obj); err != nil {
		return plumbing.ZeroHash, err
	}
	return s.repo.Storer.SetEncodedObject(obj)
}

func (s *Store) readBlob(hash plumbing.Hash) ([]byte, error) {
	blob, err := s.repo.BlobObject(hash)
	if err != nil {
		return nil, err
	}
	r, err := blob.Reader()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}

func isEmpty(err error) bool {
	return errors.Is(err, ErrRefNotFound)
}
