package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/retailmarket/app/plugins"
	"github.com/kilianp07/retailmarket/config"
	"github.com/kilianp07/retailmarket/core/audit"
	"github.com/kilianp07/retailmarket/pkg/export"
)

var (
	auditTariff int64
	auditSince  string
	auditUntil  string
	auditFormat string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print tariff audit records as JSON lines or CSV",
	RunE:  queryAudit,
}

func init() {
	auditCmd.Flags().Int64Var(&auditTariff, "tariff", 0, "only records of this tariff")
	auditCmd.Flags().StringVar(&auditSince, "since", "", "RFC3339 lower bound")
	auditCmd.Flags().StringVar(&auditUntil, "until", "", "RFC3339 upper bound")
	auditCmd.Flags().StringVar(&auditFormat, "format", "json", "output format: json or csv")
	rootCmd.AddCommand(auditCmd)
}

func parseBound(name, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return t, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	q := audit.Query{TariffID: auditTariff}
	if q.Start, err = parseBound("since", auditSince); err != nil {
		return err
	}
	if q.End, err = parseBound("until", auditUntil); err != nil {
		return err
	}
	store, err := plugins.NewAuditStore(cfg.Audit)
	if err != nil {
		return err
	}
	defer store.Close()
	recs, err := store.Query(cmd.Context(), q)
	if err != nil {
		return err
	}
	return export.Write(cmd.OutOrStdout(), auditFormat, recs)
}
