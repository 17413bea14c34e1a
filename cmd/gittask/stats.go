package main

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/types"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show task counts by status and author",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		tasks, err := store.List()
		if err != nil {
			return err
		}

		color := cfg.ColorEnabled()
		statuses := cfg.Statuses()

		byStatus := map[string]int{}
		byAuthor := map[string]int{}
		comments := 0
		for _, task := range tasks {
			byStatus[task.Prop(types.PropStatus)]++
			if author := task.Prop(types.PropAuthor); author != "" {
				byAuthor[author]++
			}
			comments += len(task.Comments)
		}

		fmt.Printf("%s %d tasks, %d comments\n\n", render(headerStyle, "Total:", color), len(tasks), comments)

		var rows [][]string
		for _, st := range statuses.Statuses() {
			if n := byStatus[st.Name]; n > 0 {
				rows = append(rows, []string{statuses.Format(st.Name, noColor(color)), strconv.Itoa(n)})
				delete(byStatus, st.Name)
			}
		}
		// Statuses outside the configured set still count.
		var stray []string
		for name := range byStatus {
			stray = append(stray, name)
		}
		sort.Strings(stray)
		for _, name := range stray {
			rows = append(rows, []string{name, strconv.Itoa(byStatus[name])})
		}
		fmt.Print(table([]string{"STATUS", "COUNT"}, rows, color))

		if len(byAuthor) > 0 {
			type entry struct {
				name string
				n    int
			}
			entries := make([]entry, 0, len(byAuthor))
			for name, n := range byAuthor {
				entries = append(entries, entry{name, n})
			}
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].n != entries[j].n {
					return entries[i].n > entries[j].n
				}
				return entries[i].name < entries[j].name
			})
			if len(entries) > 10 {
				entries = entries[:10]
			}
			rows = rows[:0]
			for _, e := range entries {
				rows = append(rows, []string{e.name, strconv.Itoa(e.n)})
			}
			fmt.Println()
			fmt.Print(table([]string{"AUTHOR", "COUNT"}, rows, color))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
