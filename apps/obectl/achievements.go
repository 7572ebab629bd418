package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-obe/core/outcome"
)

func newAchievementsCmd(a *app) *cobra.Command {
	var courseID, studentID int
	cmd := &cobra.Command{
		Use:   "achievements",
		Short: "Show LO and PO achievement of a course, or of one student",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rep, err := a.client.Achievements(cmd.Context(), courseID, studentID)
			if err != nil {
				return err
			}
			if rep.Student > 0 {
				fmt.Fprintf(a.out, "course %d, student %d\n", rep.Course, rep.Student)
			} else {
				fmt.Fprintf(a.out, "course %d, %d student(s)\n", rep.Course, rep.Students)
			}
			return printAchievements(a.out, rep)
		},
	}
	cmd.Flags().IntVarP(&courseID, "course", "c", 0, "course id")
	cmd.Flags().IntVarP(&studentID, "student", "s", 0, "student id")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func printAchievements(out io.Writer, rep outcome.Report) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "OUTCOME\tACHIEVED\tTARGET\tMET")
	rows := func(as []outcome.Achievement) {
		for _, ach := range as {
			achieved := "-"
			if ach.Graded {
				achieved = fmt.Sprintf("%.1f%%", ach.Percentage)
			}
			met := "no"
			if ach.Met {
				met = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\n", ach.Code, achieved, ach.Target, met)
		}
	}
	rows(rep.LearningOutcomes)
	rows(rep.ProgramOutcomes)
	return w.Flush()
}
