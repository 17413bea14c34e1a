// Command gittask tracks tasks inside a git repository's object store.
// Task records live as blobs under a dedicated ref, so the tracker
// travels with the repository and needs no external database.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/objstore"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/taskstore"
	"github.com/gittask/gittask/internal/types"
)

var rootCmd = &cobra.Command{
	Use:   "gittask",
	Short: "Task tracker that lives inside your git repository",
	Long: `gittask stores tasks as objects in the current git repository,
under a dedicated ref (refs/tasks/tasks by default). No separate
database, no extra files in the working tree: the task history is a
linear commit history you can push, fetch and inspect with plain git.

Tasks can also be synchronized with the issue tracker behind the
repository's remote (GitHub, GitLab, Jira, Redmine) via push and pull.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openStore opens the task store and configuration for the repository
// enclosing the working directory.
func openStore() (*taskstore.Store, *taskcfg.Config, error) {
	store, err := taskstore.Open(".")
	if err != nil {
		if errors.Is(err, objstore.ErrNotRepository) {
			return nil, nil, fmt.Errorf("not inside a git repository")
		}
		return nil, nil, err
	}
	cfg, err := taskcfg.Load(store.Objects())
	if err != nil {
		return nil, nil, err
	}
	return store, cfg, nil
}

// mustFind loads one task or produces the uniform not-found error.
func mustFind(store *taskstore.Store, id string) (*types.Task, error) {
	t, err := store.Find(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("task %s not found", id)
	}
	return t, nil
}
