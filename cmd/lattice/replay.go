package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/internal/cli"
	"github.com/aretw0/lattice/internal/presentation/graph"
	"github.com/aretw0/lattice/internal/presentation/tui"
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a feedback file onto a model file",
	Long: `Replays the feedback of every emitter in a feedback file onto a model, the same way
a session does when a new model arrives, and writes the decorated model.`,
	Example: `  lattice replay --model model.json --feedback feedback.yaml
  lattice replay --model model.json --feedback feedback.yaml --out decorated.yaml
  lattice replay --model model.json --feedback feedback.yaml --format mermaid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modelPath, _ := cmd.Flags().GetString("model")
		feedbackPath, _ := cmd.Flags().GetString("feedback")
		outPath, _ := cmd.Flags().GetString("out")
		format, _ := cmd.Flags().GetString("format")
		quiet, _ := cmd.Flags().GetBool("quiet")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := newLogger(cfg)

		root, err := cli.LoadModel(modelPath)
		if err != nil {
			return err
		}
		file, actions, err := cli.LoadFeedback(feedbackPath, lattice.NewCodec())
		if err != nil {
			return err
		}

		out, report, err := cli.Replay(cmd.Context(), root, file, actions, logger)
		if err != nil {
			return err
		}

		switch format {
		case "mermaid":
			if outPath == "" {
				fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(out))
			} else if err := os.WriteFile(outPath, []byte(graph.GenerateMermaid(out)), 0644); err != nil {
				return err
			}
		case "model":
			if err := cli.WriteModel(cmd.OutOrStdout(), outPath, out); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown format %q (want model or mermaid)", format)
		}

		if !quiet {
			tui.PrintReplaySummary(cmd.ErrOrStderr(), tui.ReplaySummary{
				Emitters: report.Emitters,
				Actions:  report.Actions,
				Applied:  report.Event.Effects,
				Skipped:  report.Event.Skipped,
				Failed:   report.Event.Failed,
				Duration: report.Event.Duration,
			})
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().String("model", "", "Model file (JSON or YAML)")
	replayCmd.Flags().String("feedback", "", "Feedback file (YAML or JSON)")
	replayCmd.Flags().StringP("out", "o", "", "Output file (stdout when empty)")
	replayCmd.Flags().String("format", "model", "Output format: model or mermaid")
	replayCmd.Flags().BoolP("quiet", "q", false, "Do not print the replay summary")
	_ = replayCmd.MarkFlagRequired("model")
	_ = replayCmd.MarkFlagRequired("feedback")
}
