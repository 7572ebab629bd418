package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-obe/core/assessment"
)

func newWeightsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Check and edit the grade weights of a course's assessments",
	}

	var courseID int
	check := &cobra.Command{
		Use:   "check",
		Short: "Report whether the assessment weights of a course total 100%",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			wc, err := a.gradebook.WeightStatus(cmd.Context(), courseID)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, wc.Message())
			return nil
		},
	}
	check.Flags().IntVarP(&courseID, "course", "c", 0, "course id")
	_ = check.MarkFlagRequired("course")

	set := &cobra.Command{
		Use:   "set ASSESSMENT_ID WEIGHT",
		Short: "Set the weight of an assessment; it is lowered to what is left of 100% when over",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			w, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Errorf("invalid weight %q", args[1])
			}
			adj, err := a.gradebook.SetAssessmentWeight(cmd.Context(), id, assessment.GradeWeightPercent(w))
			if err != nil {
				return err
			}
			if adj.Clamped {
				fmt.Fprintln(a.out, adj.Message)
			}
			fmt.Fprintf(a.out, "%s: weight %.1f%%\n", adj.Assessment.Title, float64(adj.Applied))
			fmt.Fprintln(a.out, adj.Check.Message())
			return nil
		},
	}

	cmd.AddCommand(check, set)
	return cmd
}

// parseGrade reads "ASSESSMENT:STUDENT:SCORE".
func parseGrade(s string) (assessment.GradeEntry, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return assessment.GradeEntry{}, errors.Errorf("grade %q is not ASSESSMENT:STUDENT:SCORE", s)
	}
	aID, err1 := strconv.Atoi(parts[0])
	sID, err2 := strconv.Atoi(parts[1])
	score, err3 := strconv.ParseFloat(parts[2], 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return assessment.GradeEntry{}, errors.Errorf("grade %q is not ASSESSMENT:STUDENT:SCORE", s)
	}
	return assessment.GradeEntry{Assessment: aID, Student: sID, Score: score}, nil
}

func newGradesCmd(a *app) *cobra.Command {
	var (
		courseID int
		grades   []string
	)
	cmd := &cobra.Command{
		Use:   "grades",
		Short: "Save grades of a course; refused until its assessment weights total 100%",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries := make([]assessment.GradeEntry, 0, len(grades))
			for _, g := range grades {
				e, err := parseGrade(g)
				if err != nil {
					return err
				}
				entries = append(entries, e)
			}
			saved, err := a.gradebook.SaveGrades(cmd.Context(), courseID, entries)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "saved %d grade(s)\n", len(saved))
			return nil
		},
	}
	cmd.Flags().IntVarP(&courseID, "course", "c", 0, "course id")
	cmd.Flags().StringArrayVarP(&grades, "grade", "g", nil, "ASSESSMENT:STUDENT:SCORE, repeatable")
	_ = cmd.MarkFlagRequired("course")
	return cmd
}

func newFeedbackCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "feedback ASSESSMENT_ID SCORE",
		Short: "Show the feedback a score gets on an assessment",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			score, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return errors.Errorf("invalid score %q", args[1])
			}
			fb, ok, err := a.gradebook.Feedback(cmd.Context(), id, score)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(a.out, "no feedback for this score")
				return nil
			}
			fmt.Fprintln(a.out, fb)
			return nil
		},
	}
}
