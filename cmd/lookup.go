package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/evidence-cli/internal/evidence"
	"github.com/sells-group/evidence-cli/internal/model"
)

var (
	lookupCompany string
	lookupJSON    bool
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Retrieve evidence for one company and print it",
	RunE: func(cmd *cobra.Command, args []string) error {
		company := model.NormalizeCompany(lookupCompany)
		if company.IsZero() {
			return eris.New("--company is required")
		}

		env, err := initPipeline(cmd.Context(), "lookup")
		if err != nil {
			return err
		}
		defer env.Close()

		recs, err := env.Aggregator.GetEvidence(cmd.Context(), company, env.Source)
		if err != nil {
			return eris.Wrapf(err, "lookup %s", company)
		}
		return printEvidence(cmd.OutOrStdout(), recs, lookupJSON)
	},
}

// printEvidence writes the joined summaries, or the records as indented
// JSON when asJSON is set.
func printEvidence(w io.Writer, recs []model.EvidenceRecord, asJSON bool) error {
	if asJSON {
		if recs == nil {
			recs = []model.EvidenceRecord{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(recs), "encode records")
	}
	_, err := fmt.Fprintln(w, evidence.Summaries(recs))
	return err
}

func init() {
	lookupCmd.Flags().StringVar(&lookupCompany, "company", "", "company name to look up")
	lookupCmd.Flags().BoolVar(&lookupJSON, "json", false, "print records as JSON")
	rootCmd.AddCommand(lookupCmd)
}
