package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/taskcfg"
	"github.com/gittask/gittask/internal/taskstore"
	"github.com/gittask/gittask/internal/types"
)

var commentRemote bool

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage task comments",
}

var commentAddCmd = &cobra.Command{
	Use:   "add ID TEXT",
	Short: "Add a comment to a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}

		props := map[string]string{
			types.PropCreated: strconv.FormatInt(time.Now().Unix(), 10),
		}
		if sig, err := store.Objects().Signature(); err == nil {
			props[types.PropAuthor] = sig.Name
		}
		comment := task.AddComment("", props, args[1])
		if err := store.Update(task); err != nil {
			return err
		}
		fmt.Printf("Added comment %s to task %s\n", comment.ID, task.ID)

		if commentRemote {
			match, err := matchConnector(store, cfg)
			if err != nil {
				return err
			}
			remoteID, err := match.Connector.CreateComment(cmd.Context(), match.Scope, task.ID, comment)
			if err != nil {
				return err
			}
			if remoteID != comment.ID {
				if err := store.UpdateCommentID(task.ID, comment.ID, remoteID); err != nil {
					return err
				}
				fmt.Printf("Comment synced remotely as %s\n", remoteID)
			}
		}
		return nil
	},
}

var commentEditCmd = &cobra.Command{
	Use:   "edit ID COMMENT_ID TEXT",
	Short: "Replace a comment's text",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		comment := task.FindComment(args[1])
		if comment == nil {
			return fmt.Errorf("task %s has no comment %s", args[0], args[1])
		}
		comment.Text = args[2]
		if err := store.Update(task); err != nil {
			return err
		}

		if commentRemote {
			match, err := matchConnector(store, cfg)
			if err != nil {
				return err
			}
			return match.Connector.UpdateComment(cmd.Context(), match.Scope, task.ID, comment.ID, comment.Text)
		}
		return nil
	},
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete ID COMMENT_ID",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		if err := task.DeleteComment(args[1]); err != nil {
			return err
		}
		if err := store.Update(task); err != nil {
			return err
		}

		if commentRemote {
			match, err := matchConnector(store, cfg)
			if err != nil {
				return err
			}
			return match.Connector.DeleteComment(cmd.Context(), match.Scope, task.ID, args[1])
		}
		return nil
	},
}

// matchConnector resolves the single connector serving the repository's
// remotes, honoring the global --connector filter.
func matchConnector(store *taskstore.Store, cfg *taskcfg.Config) (connector.Match, error) {
	remotes, err := store.Objects().Remotes("")
	if err != nil {
		return connector.Match{}, err
	}
	return connector.MatchOne(cfg, remotes, connectorType)
}

func init() {
	for _, c := range []*cobra.Command{commentAddCmd, commentEditCmd, commentDeleteCmd} {
		c.Flags().BoolVar(&commentRemote, "remote", false, "propagate to the remote tracker")
		c.Flags().StringVar(&connectorType, "connector", "", "restrict remote matching to one provider type")
	}
	commentCmd.AddCommand(commentAddCmd, commentEditCmd, commentDeleteCmd)
	rootCmd.AddCommand(commentCmd)
}
