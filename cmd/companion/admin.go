package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ambienthealth/companion/internal/api"
	"github.com/ambienthealth/companion/internal/dashboard"
	"github.com/ambienthealth/companion/internal/model"
)

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Admin workflow: patient accounts and doctor signatures",
	}
	cmd.AddCommand(adminPatientsCmd())
	cmd.AddCommand(adminCreateCmd())
	return cmd
}

func adminDashboard(cmd *cobra.Command) (*app, *dashboard.Admin, error) {
	app, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if _, err := app.requireRole(cmd.Context(), model.RoleAdmin); err != nil {
		return nil, nil, err
	}
	return app, dashboard.NewAdmin(app.client, app.log), nil
}

func adminPatientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List all patient accounts",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, adm, err := adminDashboard(cmd)
			if err != nil {
				return err
			}
			patients, err := adm.Patients(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUID\tNAME\tEMAIL\tLANGUAGE")
			for _, p := range patients {
				uid := ""
				if p.PatientUID != nil {
					uid = *p.PatientUID
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, uid, p.FullName, p.Email, p.PreferredLanguage)
			}
			return w.Flush()
		},
	}
}

func adminCreateCmd() *cobra.Command {
	var req api.CreatePatientRequest
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a patient account",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, adm, err := adminDashboard(cmd)
			if err != nil {
				return err
			}
			user, err := adm.CreatePatient(cmd.Context(), req)
			if err != nil {
				return err
			}
			uid := ""
			if user.PatientUID != nil {
				uid = *user.PatientUID
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created patient %s (id %d, uid %s)\n", user.FullName, user.ID, uid)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email (required)")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password (required)")
	cmd.Flags().StringVar(&req.FullName, "name", "", "full name (required)")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&req.Address, "address", "", "postal address")
	cmd.Flags().StringVar(&req.PreferredLanguage, "language", "", "preferred report language (defaults to en)")
	return cmd
}
