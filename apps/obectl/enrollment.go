package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newEnrollmentCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enrollment",
		Short: "Manage the students enrolled in a course",
	}

	var (
		courseID int
		students []int
		dryRun   bool
	)
	sync := &cobra.Command{
		Use:   "sync",
		Short: "Enroll and unenroll students so the course has exactly the given ones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dryRun {
				changes, err := a.syncer.Plan(cmd.Context(), courseID, students)
				if err != nil {
					return err
				}
				for _, c := range changes {
					fmt.Fprintln(a.out, c)
				}
				fmt.Fprintf(a.out, "%d change(s) planned\n", len(changes))
				return nil
			}

			res, err := a.syncer.Sync(cmd.Context(), courseID, students)
			if err != nil {
				return err
			}
			for _, c := range res.Succeeded {
				fmt.Fprintln(a.out, c)
			}
			fmt.Fprintf(a.out, "%d of %d change(s) made\n", len(res.Succeeded), res.Total())
			return res.Err()
		},
	}
	sync.Flags().IntVarP(&courseID, "course", "c", 0, "course id")
	sync.Flags().IntSliceVarP(&students, "student", "s", nil, "ids of the students who should be enrolled")
	sync.Flags().BoolVar(&dryRun, "dry-run", false, "only print the changes")
	_ = sync.MarkFlagRequired("course")

	cmd.AddCommand(sync)
	return cmd
}
