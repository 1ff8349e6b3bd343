package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ambienthealth/companion/internal/dashboard"
	"github.com/ambienthealth/companion/internal/model"
)

func doctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Doctor workflow: consultations, recordings, reports",
	}
	cmd.AddCommand(doctorPatientsCmd())
	cmd.AddCommand(doctorListCmd())
	cmd.AddCommand(doctorStartCmd())
	cmd.AddCommand(doctorShowCmd())
	cmd.AddCommand(doctorTranscribeCmd())
	cmd.AddCommand(doctorAudioCmd())
	cmd.AddCommand(doctorTeachBackCmd())
	cmd.AddCommand(doctorReportCmd())
	cmd.AddCommand(doctorCompleteCmd())
	cmd.AddCommand(doctorImagesCmd())
	cmd.AddCommand(doctorSignatureCmd())
	return cmd
}

func doctorSignatureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signature <file>",
		Short: "Upload this doctor's e-signature image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			if err := doc.UploadSignature(cmd.Context(), filepath.Base(f.Name()), "", f); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signature stored")
			return nil
		},
	}
}

// doctorDashboard restores the session and builds the doctor controller.
func doctorDashboard(cmd *cobra.Command) (*app, *dashboard.Doctor, error) {
	app, err := newApp()
	if err != nil {
		return nil, nil, err
	}
	if _, err := app.requireRole(cmd.Context(), model.RoleDoctor); err != nil {
		return nil, nil, err
	}
	return app, dashboard.NewDoctor(app.client, app.cfg.Language, app.log), nil
}

func parseID(arg, what string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return id, nil
}

func doctorPatientsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patients",
		Short: "List patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			patients, err := doc.Patients(cmd.Context())
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

func doctorListCmd() *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List this doctor's consultations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			if language == "" {
				language = app.cfg.Language
			}
			consultations, err := doc.Consultations(cmd.Context(), language)
			if err != nil {
				return err
			}
			printConsultationList(cmd, consultations)
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "display language")
	return cmd
}

func doctorStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start <patient-id>",
		Short: "Open a new consultation for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			patientID, err := parseID(args[0], "patient id")
			if err != nil {
				return err
			}
			cons, err := doc.StartConsultation(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consultation %d started for %s\n", cons.ID, cons.PatientName)
			return nil
		},
	}
}

func doctorShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <consultation-id>",
		Short: "Show one consultation in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			cons, err := app.client.GetConsultation(cmd.Context(), id, app.cfg.Language)
			if err != nil {
				return err
			}
			printConsultation(cmd, cons)
			return nil
		},
	}
}

func doctorTranscribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transcribe <consultation-id>",
		Short: "Run the demo transcription over a consultation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			cons, err := doc.MockTranscribe(cmd.Context(), id)
			if err != nil {
				return err
			}
			printConsultation(cmd, cons)
			return nil
		},
	}
}

func doctorAudioCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audio <consultation-id> <file>",
		Short: "Upload a consultation recording for transcription",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			if err := doc.BeginRecording(id); err != nil {
				return err
			}
			cons, err := doc.FinishRecording(cmd.Context(), id, filepath.Base(f.Name()), "", f)
			if err != nil {
				return err
			}
			printConsultation(cmd, cons)
			return nil
		},
	}
}

func doctorTeachBackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teachback <consultation-id> <file>",
		Short: "Upload one recording answering all teach-back questions",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			cons, err := doc.SubmitTeachBack(cmd.Context(), id, filepath.Base(f.Name()), "", f)
			if err != nil {
				return err
			}
			printConsultation(cmd, cons)
			return nil
		},
	}
}

func doctorReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report <consultation-id>",
		Short: "Generate the patient-facing report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			current, err := app.client.GetConsultation(cmd.Context(), id, app.cfg.Language)
			if err != nil {
				return err
			}
			if !doc.CanGenerateReport(current) {
				return fmt.Errorf("consultation %d is not ready for a report: transcribe it first, and generate at most once", id)
			}
			cons, err := doc.GenerateReport(cmd.Context(), id)
			if err != nil {
				return err
			}
			printConsultation(cmd, cons)
			return nil
		},
	}
}

func doctorCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <consultation-id>",
		Short: "Mark a consultation completed (irreversible)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			cons, err := doc.Complete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consultation %d is now %s\n", cons.ID, cons.Status)
			return nil
		},
	}
}

func doctorImagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "images",
		Short: "Manage a consultation's medical images",
	}

	var imageType, description string
	addCmd := &cobra.Command{
		Use:   "add <consultation-id> <file>",
		Short: "Attach a medical image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()
			cons, err := doc.AddImage(cmd.Context(), id, filepath.Base(f.Name()), "", f, imageType, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Consultation %d now has %d image(s)\n", cons.ID, len(cons.MedicalImages))
			return nil
		},
	}
	addCmd.Flags().StringVar(&imageType, "type", "other", "image type (x-ray, scan, injury, burn, skin, wound, other)")
	addCmd.Flags().StringVar(&description, "description", "", "free-text description")

	listCmd := &cobra.Command{
		Use:   "list <consultation-id>",
		Short: "List attached images",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			images, err := app.client.ListImages(cmd.Context(), id)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tFILE\tDESCRIPTION")
			for _, img := range images {
				desc := ""
				if img.Description != nil {
					desc = *img.Description
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", img.ID, img.ImageType, img.Filename, desc)
			}
			return w.Flush()
		},
	}

	var yes bool
	deleteCmd := &cobra.Command{
		Use:   "delete <consultation-id> <image-id>",
		Short: "Delete an attached image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, doc, err := doctorDashboard(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "consultation id")
			if err != nil {
				return err
			}
			imageID, err := parseID(args[1], "image id")
			if err != nil {
				return err
			}
			confirm := func() bool { return yes }
			if !yes {
				confirm = func() bool {
					fmt.Fprintf(cmd.OutOrStdout(), "Delete image %d from consultation %d? [y/N]: ", imageID, id)
					reader := bufio.NewReader(cmd.InOrStdin())
					line, err := reader.ReadString('\n')
					if err != nil {
						return false
					}
					answer := strings.ToLower(strings.TrimSpace(line))
					return answer == "y" || answer == "yes"
				}
			}
			if _, err := doc.DeleteImage(cmd.Context(), id, imageID, confirm); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Image deleted")
			return nil
		},
	}
	deleteCmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	cmd.AddCommand(addCmd, listCmd, deleteCmd)
	return cmd
}

// printConsultationList renders a one-line-per-consultation table.
func printConsultationList(cmd *cobra.Command, consultations []model.Consultation) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATIENT\tSTATUS\tCREATED\tSCORE")
	for i := range consultations {
		c := &consultations[i]
		score := "-"
		if v, ok := c.OverallUnderstanding(); ok {
			score = strconv.FormatFloat(v, 'f', 1, 64)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			c.ID, c.PatientName, c.Status, c.CreatedAt.Format("2006-01-02 15:04"), score)
	}
	w.Flush()
}

// printConsultation renders the full aggregate.
func printConsultation(cmd *cobra.Command, c *model.Consultation) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Consultation %d  %s\n", c.ID, c.Status)
	fmt.Fprintf(out, "  doctor: %s  patient: %s\n", c.DoctorName, c.PatientName)
	fmt.Fprintf(out, "  created: %s\n", c.CreatedAt.Format("2006-01-02 15:04"))
	if c.Transcript != nil {
		fmt.Fprintf(out, "\nTranscript:\n%s\n", indent(c.Transcript.Content))
	}
	if cr := c.ClinicalReport; cr != nil {
		fmt.Fprintf(out, "\nClinical report:\n")
		fmt.Fprintf(out, "  symptoms: %s\n", cr.Symptoms)
		fmt.Fprintf(out, "  diagnosis: %s\n", cr.Diagnosis)
		fmt.Fprintf(out, "  medications: %s\n", cr.Medications)
		fmt.Fprintf(out, "  follow-up: %s\n", cr.FollowUp)
	}
	if len(c.TeachBackItems) > 0 {
		fmt.Fprintf(out, "\nTeach-back:\n")
		for i, item := range c.TeachBackItems {
			fmt.Fprintf(out, "  %d. %s\n", i+1, item.Question)
			if item.PatientAnswer != nil {
				fmt.Fprintf(out, "     answer: %s\n", *item.PatientAnswer)
			}
			if item.UnderstandingScore != nil {
				fmt.Fprintf(out, "     score: %d\n", *item.UnderstandingScore)
			}
		}
		if score, ok := c.OverallUnderstanding(); ok {
			fmt.Fprintf(out, "  overall understanding: %.1f\n", score)
		}
	}
	if c.PatientReport != nil {
		fmt.Fprintf(out, "\nPatient report (%s):\n%s\n", c.PatientReport.Language, indent(c.PatientReport.Content))
	}
	if len(c.MedicalImages) > 0 {
		fmt.Fprintf(out, "\nImages: %d attached\n", len(c.MedicalImages))
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = "  " + line
	}
	return strings.Join(lines, "\n")
}
