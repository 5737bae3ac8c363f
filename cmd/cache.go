package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/model"
)

var cacheCompany string

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear cached evidence",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached records for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, err := cacheTarget()
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		recs, err := st.ReadPartition(cmd.Context(), company)
		if err != nil {
			return err
		}
		return printEvidence(cmd.OutOrStdout(), recs, true)
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the cached records for a company",
	RunE: func(cmd *cobra.Command, args []string) error {
		company, err := cacheTarget()
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := st.DeletePartition(cmd.Context(), company)
		if err != nil {
			return err
		}
		zap.L().Info("cache cleared", zap.String("company", company.String()), zap.Int64("records", n))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records for %s\n", n, company)
		return err
	},
}

func cacheTarget() (model.CompanyIdentity, error) {
	if err := cfg.Validate("cache"); err != nil {
		return "", err
	}
	company := model.NormalizeCompany(cacheCompany)
	if company.IsZero() {
		return "", eris.New("--company is required")
	}
	return company, nil
}

func init() {
	cacheCmd.PersistentFlags().StringVar(&cacheCompany, "company", "", "company whose partition to use")
	cacheCmd.AddCommand(cacheShowCmd, cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
