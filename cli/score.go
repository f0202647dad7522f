package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"yukti-backend/risk"
)

func newScoreCmd() *cobra.Command {
	var (
		answersFile string
		scoringFile string
		asJSON      bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a questionnaire answers file",
		Long: `Compute the risk profile of an answers file without a server.

The file maps question ids to option labels, in YAML or JSON:

  q2: Diabetes
  q8: Severe/Daily`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if answersFile == "" {
				return errors.New("--answers is required")
			}
			table := risk.Default()
			if scoringFile != "" {
				t, err := risk.LoadTable(scoringFile)
				if err != nil {
					return err
				}
				table = t
			}
			answers, err := readAnswers(answersFile)
			if err != nil {
				return err
			}
			if err := risk.Validate(answers); err != nil {
				return err
			}
			return printProfile(cmd.OutOrStdout(), table.Score(answers), asJSON)
		},
	}
	cmd.Flags().StringVar(&answersFile, "answers", "", "Answers file (YAML or JSON)")
	cmd.Flags().StringVar(&scoringFile, "scoring", "", "Scoring table overrides (YAML)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the profile as JSON")
	return cmd
}

// readAnswers accepts YAML, and therefore JSON.
func readAnswers(path string) (map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var answers map[string]string
	if err := yaml.Unmarshal(b, &answers); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if answers == nil {
		answers = map[string]string{}
	}
	return answers, nil
}

func printProfile(w io.Writer, p risk.Profile, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	}
	for _, c := range p.Categories {
		fmt.Fprintf(w, "%-15s %3d / %d\n", c.Name, c.Score, c.Max)
	}
	fmt.Fprintf(w, "Total Risk: %s (%d/%d)\n", p.RiskLabel, p.Total, p.MaxTotal)
	fmt.Fprintf(w, "Answered: %d/%d\n", p.Answered, len(risk.Questions))
	return nil
}
