package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseIDs expands an id list with ranges, e.g. "1,3..5,7" yields
// 1 3 4 5 7. Non-numeric ids are passed through verbatim; ranges
// require numeric bounds.
func parseIDs(args []string) ([]string, error) {
	var ids []string
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, ok := strings.Cut(part, "..")
			if !ok {
				ids = append(ids, part)
				continue
			}
			start, err := strconv.Atoi(lo)
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
			end, err := strconv.Atoi(hi)
			if err != nil {
				return nil, fmt.Errorf("invalid range %q: %w", part, err)
			}
			if end < start {
				return nil, fmt.Errorf("invalid range %q: end before start", part)
			}
			for n := start; n <= end; n++ {
				ids = append(ids, strconv.Itoa(n))
			}
		}
	}
	return ids, nil
}
