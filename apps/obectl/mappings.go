package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/masomo-obe/core/mapping"
	"github.com/trezcool/masomo-obe/core/outcome"
)

type mappingFlags struct {
	kind   string
	course int
}

func (f *mappingFlags) register(cmd *cobra.Command, needCourse bool) {
	cmd.Flags().StringVarP(&f.kind, "kind", "k", string(outcome.KindAssessmentLO), "mapping kind: assessment-lo or lo-po")
	if needCourse {
		cmd.Flags().IntVarP(&f.course, "course", "c", 0, "course id")
		_ = cmd.MarkFlagRequired("course")
	}
}

// view opens the mapping view of the flagged kind on the flagged course.
func (f *mappingFlags) view(cmd *cobra.Command, a *app) (*mapping.View, error) {
	kind, err := outcome.ParseKind(f.kind)
	if err != nil {
		return nil, err
	}
	v := mapping.NewView(a.mappings, kind)
	if f.course > 0 {
		if _, err := v.Select(cmd.Context(), f.course); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func printMappings(a *app, v *mapping.View) error {
	courseID, ms := v.Mappings()
	if len(ms) == 0 {
		fmt.Fprintf(a.out, "no %s mappings in course %d\n", v.Kind(), courseID)
		return nil
	}
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFROM\tTO\tCONTRIBUTION")
	for _, m := range ms {
		fmt.Fprintf(w, "%d\t%s\t%s\t%.0f%%\n", m.ID, label(m.SourceLabel, m.SourceID), label(m.TargetLabel, m.TargetID), float64(m.Percentage()))
	}
	return w.Flush()
}

func label(name string, id int) string {
	if name == "" {
		return "#" + strconv.Itoa(id)
	}
	return fmt.Sprintf("%s (#%d)", name, id)
}

func parseID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, errors.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// resolvePercentage applies the form's input policy and tells the user about a reset.
func resolvePercentage(a *app, kind outcome.Kind, input float64) (outcome.Percentage, error) {
	pct, reset, err := outcome.ResolvePercentage(kind, input)
	if err != nil {
		return 0, err
	}
	if reset {
		fmt.Fprintf(a.out, "no contribution given, using the default of %.0f%%\n", float64(pct))
	}
	return pct, nil
}

func newMappingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mappings",
		Aliases: []string{"mapping", "map"},
		Short:   "List and edit the Assessment->LO and LO->PO mappings of a course",
	}
	cmd.AddCommand(
		newMappingsListCmd(a),
		newMappingsCreateCmd(a),
		newMappingsUpdateCmd(a),
		newMappingsDeleteCmd(a),
		newMappingsApplyCmd(a),
	)
	return cmd
}

func newMappingsListCmd(a *app) *cobra.Command {
	var f mappingFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the mappings of a course",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := f.view(cmd, a)
			if err != nil {
				return err
			}
			return printMappings(a, v)
		},
	}
	f.register(cmd, true)
	return cmd
}

func newMappingsCreateCmd(a *app) *cobra.Command {
	var (
		f              mappingFlags
		source, target int
		percentage     float64
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Map an assessment to an LO, or an LO to a PO",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := f.view(cmd, a)
			if err != nil {
				return err
			}
			pct, err := resolvePercentage(a, v.Kind(), percentage)
			if err != nil {
				return err
			}
			m, err := v.Create(cmd.Context(), source, target, pct)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "created %s\n", m)
			return printMappings(a, v)
		},
	}
	f.register(cmd, true)
	cmd.Flags().IntVar(&source, "from", 0, "assessment id (assessment-lo) or LO id (lo-po)")
	cmd.Flags().IntVar(&target, "to", 0, "LO id (assessment-lo) or PO id (lo-po)")
	cmd.Flags().Float64VarP(&percentage, "percentage", "p", 0, "contribution, 1 to 100 (0 uses the default)")
	return cmd
}

func newMappingsUpdateCmd(a *app) *cobra.Command {
	var (
		f          mappingFlags
		percentage float64
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change the contribution of a mapping",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v, err := f.view(cmd, a)
			if err != nil {
				return err
			}
			pct, err := resolvePercentage(a, v.Kind(), percentage)
			if err != nil {
				return err
			}
			m, err := v.Update(cmd.Context(), id, pct)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "updated %s\n", m)
			return nil
		},
	}
	f.register(cmd, false)
	cmd.Flags().Float64VarP(&percentage, "percentage", "p", 0, "contribution, 1 to 100 (0 uses the default)")
	return cmd
}

func newMappingsDeleteCmd(a *app) *cobra.Command {
	var f mappingFlags
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a mapping, after confirmation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			v, err := f.view(cmd, a)
			if err != nil {
				return err
			}
			deleted, err := v.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !deleted {
				fmt.Fprintln(a.out, "cancelled")
				return nil
			}
			fmt.Fprintf(a.out, "deleted %s#%d\n", v.Kind(), id)
			return nil
		},
	}
	f.register(cmd, false)
	return cmd
}

// editLine is one entry of an edits file.
type editLine struct {
	Op         string  `json:"op"`
	Kind       string  `json:"kind"`
	ID         int     `json:"id"`
	From       int     `json:"from"`
	To         int     `json:"to"`
	Percentage float64 `json:"percentage"`
}

func (l editLine) edit() (mapping.Edit, error) {
	kind, err := outcome.ParseKind(l.Kind)
	if err != nil {
		return mapping.Edit{}, err
	}
	e := mapping.Edit{Kind: kind, ID: l.ID, SourceID: l.From, TargetID: l.To}
	switch l.Op {
	case "create":
		e.Op = mapping.OpCreate
	case "update":
		e.Op = mapping.OpUpdate
	case "delete":
		e.Op = mapping.OpDelete
		return e, nil
	default:
		return mapping.Edit{}, errors.Errorf("unknown op %q", l.Op)
	}
	if e.Percentage, _, err = outcome.ResolvePercentage(kind, l.Percentage); err != nil {
		return mapping.Edit{}, err
	}
	return e, nil
}

func readEdits(path string) ([]mapping.Edit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading edits")
	}
	var lines []editLine
	if err := json.Unmarshal(data, &lines); err != nil {
		return nil, errors.Wrap(err, "decoding edits")
	}
	edits := make([]mapping.Edit, 0, len(lines))
	for i, l := range lines {
		e, err := l.edit()
		if err != nil {
			return nil, errors.Wrapf(err, "edit %d", i+1)
		}
		edits = append(edits, e)
	}
	return edits, nil
}

func newMappingsApplyCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Apply a JSON list of mapping edits, continuing past failures",
		Long: `Apply reads a JSON array of edits such as
  [{"op": "create", "kind": "assessment-lo", "from": 3, "to": 7, "percentage": 50},
   {"op": "update", "kind": "lo-po", "id": 12, "percentage": 80},
   {"op": "delete", "kind": "lo-po", "id": 9}]
Deletions are confirmed once for the whole file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			edits, err := readEdits(file)
			if err != nil {
				return err
			}
			res := a.mappings.Apply(cmd.Context(), edits)
			for _, e := range res.Succeeded {
				fmt.Fprintf(a.out, "ok      %s\n", e)
			}
			for _, f := range res.Failed {
				fmt.Fprintf(a.out, "failed  %s: %v\n", f.Item, f.Err)
			}
			fmt.Fprintf(a.out, "%d of %d edits applied\n", len(res.Succeeded), res.Total())
			return res.Err()
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON file of edits")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
