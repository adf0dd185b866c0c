package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ayusman/taiji/internal/sequence"
)

func newSequencesCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "sequences [id]",
		Short:       "List the practice catalog, or the poses of one sequence",
		Args:        cobra.MaximumNArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				seq, err := sequence.Get(args[0], true)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderPoses(seq))
				return nil
			}
			fmt.Fprintln(out, renderSequences(sequence.All(true)))
			return nil
		},
	}
}

func renderSequences(seqs []sequence.Sequence) string {
	rows := make([][]string, 0, len(seqs))
	for _, s := range seqs {
		rows = append(rows, []string{
			s.ID,
			s.Name,
			s.Difficulty,
			strconv.Itoa(len(s.Poses)),
			fmt.Sprintf("%ds", s.TotalDuration()),
			strconv.Itoa(s.XP),
		})
	}
	return renderTable("", []string{"ID", "Name", "Difficulty", "Poses", "Duration", "XP"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight})
}

func renderPoses(seq sequence.Sequence) string {
	rows := make([][]string, 0, len(seq.Poses))
	for i, p := range seq.Poses {
		rows = append(rows, []string{
			sequence.SegmentKey(seq.ID, i),
			p.Name,
			p.GestureID,
			fmt.Sprintf("%ds", p.Duration),
			sequence.VideoPath("", p, i),
		})
	}
	return renderTable(seq.Name, []string{"Segment", "Pose", "Label", "Duration", "Video"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
}
