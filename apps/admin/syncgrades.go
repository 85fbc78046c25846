package main

import (
	"context"
	"fmt"
	"sort"
)

func (cli *commandLine) syncGrades(removeOrphaned bool) error {
	res, err := cli.syncer.SyncAllGrades(context.Background(), removeOrphaned)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(res.Grades))
	for id := range res.Grades {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		r := res.Grades[id]
		fmt.Fprintf(cli.out, "%s: %d added, %d promoted, %d removed, %d skipped\n", id, r.Added, r.Promoted, r.Removed, r.Skipped)
	}
	for id, msg := range res.Failed {
		fmt.Fprintf(cli.out, "%s: failed: %s\n", id, msg)
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("%d grade(s) failed to sync", len(res.Failed))
	}
	return nil
}
