package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/reconcile"

	// Provider registration.
	_ "github.com/gittask/gittask/internal/connector/github"
	_ "github.com/gittask/gittask/internal/connector/gitlab"
	_ "github.com/gittask/gittask/internal/connector/jira"
	_ "github.com/gittask/gittask/internal/connector/redmine"
)

var (
	connectorType  string
	pushNoComments bool

	pullLimit      int
	pullState      string
	pullNoComments bool
	pullNoLabels   bool
)

var pushCmd = &cobra.Command{
	Use:   "push ID...",
	Short: "Push local tasks to the matching remote tracker",
	Long: `Push the named tasks to the issue tracker behind the repository's
remote. The local side is authoritative: statuses are pushed outward,
unsynced comments are created remotely, and nothing is ever deleted.

A task the remote does not know is created there; if the tracker
assigns a different id, the local record is renamed to match it.

Examples:
  gittask push 3
  gittask push 1,4..6 --no-comments
  gittask push 3 --connector github`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		match, err := matchConnector(store, cfg)
		if err != nil {
			return err
		}

		rec := reconcile.New(store, cfg.Statuses(), match)
		results := rec.Push(cmd.Context(), ids, reconcile.PushOptions{NoComments: pushNoComments})
		return report(results, match.Connector.TypeName(), cfg.ColorEnabled())
	},
}

var pullCmd = &cobra.Command{
	Use:   "pull [ID...]",
	Short: "Import tasks from the matching remote tracker",
	Long: `Import tasks from the issue tracker behind the repository's remote.
Unknown tasks are created locally under their remote ids; tasks that
drifted are overwritten with the remote name, description and status.
Tasks that exist only locally are never touched.

Examples:
  gittask pull
  gittask pull 17 23
  gittask pull --state open --limit 50 --no-comments`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		state, err := parseState(pullState)
		if err != nil {
			return err
		}
		match, err := matchConnector(store, cfg)
		if err != nil {
			return err
		}

		rec := reconcile.New(store, cfg.Statuses(), match)
		results, err := rec.Pull(cmd.Context(), reconcile.PullOptions{
			IDs:        ids,
			Limit:      pullLimit,
			State:      state,
			NoComments: pullNoComments,
			NoLabels:   pullNoLabels,
		})
		if err != nil {
			return err
		}
		return report(results, match.Connector.TypeName(), cfg.ColorEnabled())
	},
}

func parseState(s string) (connector.TaskState, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return connector.StateAll, nil
	case "open":
		return connector.StateOpen, nil
	case "closed":
		return connector.StateClosed, nil
	default:
		return "", fmt.Errorf("invalid state %q: want open, closed or all", s)
	}
}

// report prints one line per task and returns an error when any task
// failed, so the process exit code reflects partial failure.
func report(results []reconcile.Result, provider string, colorEnabled bool) error {
	failed := 0
	for _, res := range results {
		switch res.Outcome {
		case reconcile.OutcomeFailed:
			failed++
			fmt.Printf("%s task %s: %v\n", render(errStyle, "failed", colorEnabled), res.ID, connectorHelp(res.Err))
		case reconcile.OutcomeUpToDate:
			fmt.Printf("task %s: nothing to sync\n", res.ID)
		case reconcile.OutcomeCreated:
			id := res.ID
			if res.RemoteID != res.ID {
				id = res.ID + " -> " + res.RemoteID
			}
			fmt.Printf("%s task %s on %s%s\n", render(okStyle, "created", colorEnabled), id, provider, commentNote(res.Comments))
		case reconcile.OutcomeUpdated:
			fmt.Printf("%s task %s%s\n", render(okStyle, "updated", colorEnabled), res.ID, commentNote(res.Comments))
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed to sync", failed, len(results))
	}
	return nil
}

func commentNote(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d comments)", n)
}

// connectorHelp appends a hint about tokens when matching failed for
// lack of credentials.
func connectorHelp(err error) error {
	if errors.Is(err, connector.ErrNoToken) {
		return fmt.Errorf("%w (tokens are read from the environment, e.g. GITHUB_TOKEN)", err)
	}
	return err
}

func init() {
	pushCmd.Flags().BoolVar(&pushNoComments, "no-comments", false, "do not sync comments")
	pushCmd.Flags().StringVar(&connectorType, "connector", "", "restrict remote matching to one provider type")

	pullCmd.Flags().IntVarP(&pullLimit, "limit", "l", 0, "maximum number of tasks to import")
	pullCmd.Flags().StringVar(&pullState, "state", "all", "filter by remote state: open, closed or all")
	pullCmd.Flags().BoolVar(&pullNoComments, "no-comments", false, "do not import comments")
	pullCmd.Flags().BoolVar(&pullNoLabels, "no-labels", false, "do not import labels")
	pullCmd.Flags().StringVar(&connectorType, "connector", "", "restrict remote matching to one provider type")

	rootCmd.AddCommand(pushCmd, pullCmd)
}
