package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/meapi/internal/client"
	"github.com/kalambet/meapi/internal/config"
	"github.com/kalambet/meapi/internal/export"
	"github.com/kalambet/meapi/internal/ingest"
	"github.com/kalambet/meapi/internal/ui"
)

// commandContext is cancelled on Ctrl-C.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt)
}

func newController(api ui.ProfileAPI) *ui.Controller {
	return ui.NewController(api, ui.WithLogger(slog.Default()))
}

// reportBanner turns the controller's banner into CLI output. A failed action
// returns the banner text as its error so main prints it in red.
func reportBanner(ctrl *ui.Controller, err error) error {
	msg, shown := ctrl.Banner().Current()
	if err != nil {
		if shown && msg.Kind == ui.BannerError {
			return errors.New(msg.Text)
		}
		return err
	}
	if !shown {
		return nil
	}
	if msg.Kind == ui.BannerSuccess {
		printSuccess("%s", msg.Text)
	} else {
		// The action went through but the follow-up re-list did not.
		printWarning("%s", msg.Text)
	}
	return nil
}

func parseProfileID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid profile id %q", arg)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// bioFromFlags prefers --bio-file over --bio. changed reports whether either
// was given.
func bioFromFlags(cmd *cobra.Command) (bio string, changed bool, err error) {
	if path, _ := cmd.Flags().GetString("bio-file"); path != "" {
		text, err := ingest.ReadBio(path)
		if err != nil {
			return "", false, err
		}
		return text, true, nil
	}
	bio, _ = cmd.Flags().GetString("bio")
	return bio, cmd.Flags().Changed("bio"), nil
}

// --- profile ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "List, view and manage profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		if err := ctrl.LoadProfiles(ctx); err != nil {
			return reportBanner(ctrl, err)
		}

		profiles := ctrl.Snapshot().Profiles
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), profiles)
		}
		writeCards(cmd.OutOrStdout(), profiles, ui.NoProfilesText)
		return nil
	},
}

var profileShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProfileID(args[0])
		if err != nil {
			return err
		}
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		p, err := c.GetProfile(ctx, id)
		if err != nil {
			var apiErr *client.APIError
			if errors.As(err, &apiErr) {
				return errors.New(apiErr.Message(err.Error()))
			}
			return err
		}

		if asJSON {
			return writeJSON(cmd.OutOrStdout(), p)
		}
		writeDetail(cmd.OutOrStdout(), p)
		return nil
	},
}

var profileCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a profile",
	Long: `Create a profile.

Examples:
  meapi profile create --name "Ada Lovelace" --email ada@example.com --skills "Math, Engines"
  meapi profile create --name Bob --email bob@example.com --bio-file ./bio.pdf`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		email, _ := cmd.Flags().GetString("email")
		phone, _ := cmd.Flags().GetString("phone")
		skills, _ := cmd.Flags().GetString("skills")
		bio, _, err := bioFromFlags(cmd)
		if err != nil {
			return err
		}

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		err = ctrl.CreateProfile(ctx, ui.CreateForm{
			Name:   name,
			Email:  email,
			Phone:  phone,
			Bio:    bio,
			Skills: skills,
		})
		return reportBanner(ctrl, err)
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a profile's name, phone, bio or skills",
	Long: `Update a profile.

The edit form is filled from the stored profile and only the flags given
replace its values. Email cannot be changed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProfileID(args[0])
		if err != nil {
			return err
		}
		bio, bioChanged, err := bioFromFlags(cmd)
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if !bioChanged && !flags.Changed("name") && !flags.Changed("phone") && !flags.Changed("skills") {
			return fmt.Errorf("nothing to update: one of --name, --phone, --bio, --bio-file or --skills is required")
		}

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		if _, err := ctrl.OpenProfile(ctx, id); err != nil {
			return reportBanner(ctrl, err)
		}
		form, err := ctrl.EditSelected()
		if err != nil {
			return err
		}

		if flags.Changed("name") {
			form.Name, _ = flags.GetString("name")
		}
		if flags.Changed("phone") {
			form.Phone, _ = flags.GetString("phone")
		}
		if flags.Changed("skills") {
			form.Skills, _ = flags.GetString("skills")
		}
		if bioChanged {
			form.Bio = bio
		}

		return reportBanner(ctrl, ctrl.UpdateProfile(ctx, form))
	},
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a profile after confirmation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseProfileID(args[0])
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		p, err := ctrl.OpenProfile(ctx, id)
		if err != nil {
			return reportBanner(ctrl, err)
		}

		var prompter ui.Prompter = &ui.TerminalPrompter{In: cmd.InOrStdin(), Out: stderr}
		if yes {
			prompter = &ui.FixedPrompter{Answer: true}
		} else {
			writeDetail(stderr, p)
		}

		err = ctrl.DeleteSelected(ctx, prompter)
		if _, shown := ctrl.Banner().Current(); err == nil && !shown {
			printWarning("Delete cancelled")
			return nil
		}
		return reportBanner(ctrl, err)
	},
}

var profileSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search profiles by name, email or skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		asJSON, _ := cmd.Flags().GetBool("json")

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		if err := ctrl.Search(ctx, query, &ui.TerminalPrompter{In: cmd.InOrStdin(), Out: stderr}); err != nil {
			return reportBanner(ctrl, err)
		}

		state := ctrl.Snapshot()
		if !state.Searched {
			return nil
		}
		if asJSON {
			return writeJSON(cmd.OutOrStdout(), state.SearchResults)
		}
		writeCards(cmd.OutOrStdout(), state.SearchResults, ui.NoResultsText)
		return nil
	},
}

var profileExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every profile as JSON or XLSX",
	Long: `Export every profile as JSON or XLSX.

The format defaults to the --output extension, or JSON when writing to stdout.

Examples:
  meapi profile export > profiles.json
  meapi profile export --output profiles.xlsx`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		if format == "" {
			format = export.FormatFromPath(output)
		}
		if strings.EqualFold(format, export.FormatXLSX) && output == "" {
			return fmt.Errorf("--output is required for xlsx exports")
		}

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		profiles, err := c.ListProfiles(ctx)
		if err != nil {
			return fmt.Errorf("fetching profiles: %w", err)
		}

		var writer io.Writer = cmd.OutOrStdout()
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}

		if err := export.Write(writer, format, profiles); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported %s to %s", profileCount(len(profiles)), output)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{profileListCmd, profileShowCmd, profileSearchCmd} {
		c.Flags().Bool("json", false, "print JSON instead of cards")
	}

	profileCreateCmd.Flags().String("name", "", "full name")
	profileCreateCmd.Flags().String("email", "", "email address (must be unique)")
	profileCreateCmd.Flags().String("phone", "", "phone number")
	profileCreateCmd.Flags().String("bio", "", "short bio")
	profileCreateCmd.Flags().String("bio-file", "", "read the bio from a .txt, .md, .pdf or .html file")
	profileCreateCmd.Flags().String("skills", "", "comma-separated skills")
	profileCreateCmd.MarkFlagRequired("name")
	profileCreateCmd.MarkFlagRequired("email")

	profileUpdateCmd.Flags().String("name", "", "new name")
	profileUpdateCmd.Flags().String("phone", "", "new phone number")
	profileUpdateCmd.Flags().String("bio", "", "new bio")
	profileUpdateCmd.Flags().String("bio-file", "", "read the new bio from a .txt, .md, .pdf or .html file")
	profileUpdateCmd.Flags().String("skills", "", "new comma-separated skills")

	profileDeleteCmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")

	profileExportCmd.Flags().String("format", "", "json or xlsx")
	profileExportCmd.Flags().StringP("output", "o", "", "output file path (default: stdout)")

	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	profileCmd.AddCommand(profileCreateCmd)
	profileCmd.AddCommand(profileUpdateCmd)
	profileCmd.AddCommand(profileDeleteCmd)
	profileCmd.AddCommand(profileSearchCmd)
	profileCmd.AddCommand(profileExportCmd)
}

// --- skills ---

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "Skill statistics",
}

var skillsTopCmd = &cobra.Command{
	Use:   "top",
	Short: "Show the most common skills",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		c, err := newAPIClient()
		if err != nil {
			return err
		}
		ctx, stop := commandContext(cmd)
		defer stop()

		ctrl := newController(c)
		defer ctrl.Close()
		if err := ctrl.LoadTopSkills(ctx, limit); err != nil {
			return reportBanner(ctrl, err)
		}

		out := cmd.OutOrStdout()
		skills := ctrl.Snapshot().Skills
		if len(skills) == 0 {
			fmt.Fprintln(out, ui.NoSkillsText)
			return nil
		}
		for _, s := range skills {
			fmt.Fprintf(out, "%-24s %s\n", s.Skill, profileCount(s.Count))
		}
		return nil
	},
}

func init() {
	skillsTopCmd.Flags().Int("limit", ui.DefaultSkillsLimit, "number of skills to show (1-100)")
	skillsCmd.AddCommand(skillsTopCmd)
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long:  "Set a configuration value.\n\nKeys: " + strings.Join(config.ValidKeys(), ", "),
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
