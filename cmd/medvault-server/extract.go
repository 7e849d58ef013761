package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/medvault/medvault/pkg/vaultclient"
)

// extractCmd calls a running server the way the web client does. The server
// URL and access token come from flags or MEDVAULT_URL / MEDVAULT_TOKEN.
func extractCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MEDVAULT")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract structured data through a running server",
	}
	cmd.PersistentFlags().String("url", "http://localhost:8000", "Server base URL")
	cmd.PersistentFlags().String("token", "", "Bearer access token")
	cmd.PersistentFlags().Bool("save", false, "Store the result as a medical report")
	cmd.PersistentFlags().String("family-member", "", "Family member ID to file a saved report under")
	_ = v.BindPFlag("url", cmd.PersistentFlags().Lookup("url"))
	_ = v.BindPFlag("token", cmd.PersistentFlags().Lookup("token"))

	newClient := func() *vaultclient.Client {
		return vaultclient.New(v.GetString("url"), v.GetString("token"))
	}

	// extract prescription
	cmd.AddCommand(&cobra.Command{
		Use:   "prescription <image>",
		Short: "Read a prescription image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			img, err := vaultclient.EncodeFile(args[0])
			if err != nil {
				return err
			}
			client := newClient()
			data, err := client.ExtractPrescription(cmd.Context(), img)
			if err != nil {
				return err
			}
			return printOrSave(cmd, client, data, vaultclient.SaveReportInput{Prescription: data})
		},
	})

	// extract report
	reportCmd := &cobra.Command{
		Use:   "report [image]",
		Short: "Read a medical report from an image or --text",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, _ := cmd.Flags().GetString("text")
			if len(args) == 0 && strings.TrimSpace(text) == "" {
				return fmt.Errorf("provide an image path or --text")
			}

			client := newClient()
			var in vaultclient.SaveReportInput
			if len(args) == 1 {
				img, err := vaultclient.EncodeFile(args[0])
				if err != nil {
					return err
				}
				if in.Report, err = client.ExtractMedicalReport(cmd.Context(), img); err != nil {
					return err
				}
			} else {
				var err error
				if in.Report, err = client.ExtractMedicalReportText(cmd.Context(), text); err != nil {
					return err
				}
			}
			return printOrSave(cmd, client, in.Report, in)
		},
	}
	reportCmd.Flags().String("text", "", "Report text instead of an image")
	cmd.AddCommand(reportCmd)

	// extract symptoms
	symptomsCmd := &cobra.Command{
		Use:   "symptoms <description>",
		Short: "Analyze a free-text symptom description",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := vaultclient.SymptomsInput{Symptoms: strings.Join(args, " ")}
			in.Age, _ = cmd.Flags().GetInt("age")
			in.Gender, _ = cmd.Flags().GetString("gender")
			in.Duration, _ = cmd.Flags().GetString("duration")

			analysis, err := newClient().AnalyzeSymptoms(cmd.Context(), in)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), analysis)
		},
	}
	symptomsCmd.Flags().Int("age", 0, "Patient age")
	symptomsCmd.Flags().String("gender", "", "Patient gender")
	symptomsCmd.Flags().String("duration", "", "How long the symptoms have lasted")
	cmd.AddCommand(symptomsCmd)

	return cmd
}

// printOrSave prints the extraction, or with --save stores it and prints the
// stored row.
func printOrSave(cmd *cobra.Command, client *vaultclient.Client, extracted any, in vaultclient.SaveReportInput) error {
	save, _ := cmd.Flags().GetBool("save")
	if !save {
		return writeJSON(cmd.OutOrStdout(), extracted)
	}

	if fm, _ := cmd.Flags().GetString("family-member"); fm != "" {
		id, err := uuid.Parse(fm)
		if err != nil {
			return fmt.Errorf("invalid --family-member: %w", err)
		}
		in.FamilyMemberID = &id
	}
	saved, err := client.SaveReport(cmd.Context(), in)
	if err != nil {
		return err
	}
	return writeJSON(cmd.OutOrStdout(), saved)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
