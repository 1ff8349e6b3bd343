package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ambienthealth/companion/internal/dashboard"
	"github.com/ambienthealth/companion/internal/model"
	"github.com/ambienthealth/companion/internal/report"
)

func patientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Patient workflow: visit history and report export",
	}
	cmd.AddCommand(patientVisitsCmd())
	cmd.AddCommand(patientExportCmd())
	return cmd
}

func patientDashboard(cmd *cobra.Command) (*app, *dashboard.Patient, error) {
	app, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if _, err := app.requireRole(cmd.Context(), model.RolePatient); err != nil {
		return nil, nil, err
	}
	renderer := report.NewRenderer(app.cfg.FontDir, app.client, app.log)
	return app, dashboard.NewPatient(app.client, renderer, app.log), nil
}

func patientVisitsCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "visits",
		Short: "List this patient's visits",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, pat, err := patientDashboard(cmd)
			if err != nil {
				return err
			}
			if language == "" {
				language = app.cfg.Language
			}
			visits, err := pat.Visits(cmd.Context(), language)
			if err != nil {
				return err
			}
			printConsultationList(cmd, visits)
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "display language")
	return cmd
}

func patientExportCmd() *cobra.Command {
	var language, outDir string
	cmd := &cobra.Command{
		Use:   "export <consultation-id>",
		Short: "Export a visit's take-home report as PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, pat, err := patientDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			if language == "" {
				language = app.cfg.Language
			}
			cons, err := app.client.GetConsultation(cmd.Context(), id, language)
			if err != nil {
				return err
			}
			raw, name, err := pat.ExportReport(cmd.Context(), cons, language)
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, name)
			if err := os.WriteFile(path, raw, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(raw))
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "report language")
	cmd.Flags().StringVar(&outDir, "out", ".", "output directory")
	return cmd
}
