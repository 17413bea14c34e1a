package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gittask/gittask/internal/types"
)

// export/import move the whole task set through JSON, for backup or for
// carrying tasks between repositories.

var exportCmd = &cobra.Command{
	Use:   "export [FILE]",
	Short: "Write all tasks as JSON",
	Long: `Write every task to FILE, or to stdout when no file is given.
Output is indented on a terminal and compact when piped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		tasks, err := store.List()
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		indent := term.IsTerminal(int(os.Stdout.Fd()))
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
			indent = true
		}

		enc := json.NewEncoder(out)
		if indent {
			enc.SetIndent("", "  ")
		}
		return enc.Encode(tasks)
	},
}

var importCmd = &cobra.Command{
	Use:   "import [FILE]",
	Short: "Read tasks from JSON",
	Long: `Read a JSON task array from FILE or stdin and store it. Tasks keep
their ids; an id already present locally is overwritten.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		var in io.Reader = os.Stdin
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		} else if term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("nothing piped to stdin: give a file or pipe JSON in")
		}

		var tasks []*types.Task
		if err := json.NewDecoder(in).Decode(&tasks); err != nil {
			return fmt.Errorf("decoding input: %w", err)
		}

		imported := 0
		for _, task := range tasks {
			if task.ID == "" {
				if _, err := store.Create(task); err != nil {
					return err
				}
			} else if err := store.Update(task); err != nil {
				return err
			}
			imported++
		}
		fmt.Printf("Imported %d tasks\n", imported)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
}
