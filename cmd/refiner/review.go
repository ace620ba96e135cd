package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/metalagman/refiner/internal/report"
	"github.com/metalagman/refiner/internal/review"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
)

func reviewCmd() *cobra.Command {
	var (
		planner     string
		updater     string
		creator     string
		format      string
		temperature float64
		maxTokens   int
	)
	cmd := &cobra.Command{
		Use:   "review <project-id>",
		Short: "Review a project backlog and print suggested revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			req := review.Request{
				ProjectID: args[0],
				Profile:   viper.GetString("profile"),
				Agents:    review.AgentOverrides{Planner: planner, Updater: updater, Creator: creator},
			}
			if cmd.Flags().Changed("temperature") {
				req.Temperature = &temperature
			}
			if cmd.Flags().Changed("max-tokens") {
				req.MaxTokens = &maxTokens
			}

			rep, err := a.reviewer.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			printSummary(cmd.ErrOrStderr(), rep)
			return writeReport(cmd.OutOrStdout(), rep, format, isTerminal(cmd.OutOrStdout()))
		},
	}
	cmd.Flags().StringVar(&planner, "planner", "", "agent name for the planner role")
	cmd.Flags().StringVar(&updater, "updater", "", "agent name for the updater role")
	cmd.Flags().StringVar(&creator, "creator", "", "agent name for the creator role")
	cmd.Flags().Float64Var(&temperature, "temperature", 0, "sampling temperature for every agent call")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "maximum output tokens per agent call")
	cmd.Flags().StringVarP(&format, "format", "f", formatMarkdown, "output format: json or markdown")
	return cmd
}

func checkFormat(format string) error {
	switch format {
	case formatJSON, formatMarkdown:
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want %s or %s)", format, formatJSON, formatMarkdown)
	}
}

// writeReport writes rep as indented JSON or markdown. Markdown is styled
// with glamour only when w is a terminal.
func writeReport(w io.Writer, rep report.Report, format string, styled bool) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	md := report.Markdown(rep)
	if styled {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err == nil {
			if out, err := renderer.Render(md); err == nil {
				md = out
			}
		}
	}
	_, err := io.WriteString(w, md)
	return err
}

func printSummary(w io.Writer, rep report.Report) {
	line := fmt.Sprintf("%d updates, %d new challenges, %d no-change", len(rep.Updates), len(rep.NewChallenges), len(rep.NoChange))
	mark := StyleSuccess.Render("review done")
	if len(rep.Errors) > 0 {
		mark = StyleWarning.Render("review done with errors")
		line += fmt.Sprintf(", %d failed directives", len(rep.Errors))
	}
	fmt.Fprintf(w, "%s %s %s\n", mark, line, StyleMuted.Render("run "+rep.RunID))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
