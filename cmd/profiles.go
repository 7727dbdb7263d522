// =============================================================================
// Aging Report Converter - Profiles Command
// =============================================================================
//
// This file defines the 'profiles' command, which lists the built-in input
// profiles and the ones loaded from profiles_dir.
//
// COMMAND USAGE:
//   agingconv profiles
//
// =============================================================================

package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/ginjaninja78/aging-to-qb-converter/internal/config"
	"github.com/spf13/cobra"
)

// profilesCmd represents the 'profiles' command.
var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available input profiles",
	Long: `List the built-in input profiles and the custom profiles loaded from
profiles_dir. The default profile is marked with "*".`,

	Args: cobra.NoArgs,

	RunE: func(cmd *cobra.Command, args []string) error {
		return listProfiles(cmd.OutOrStdout(), app.registry, app.cfg.DefaultProfile)
	},
}

// init registers the profiles command with the root command.
func init() {
	rootCmd.AddCommand(profilesCmd)
}

// listProfiles writes one line per profile.
func listProfiles(w io.Writer, registry *config.Registry, defaultName string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSOURCE\tLAYOUT\tSKIP\tSELECT\tSPLIT\tDESCRIPTION")

	for _, name := range registry.Names() {
		p, err := registry.Get(name)
		if err != nil {
			return err
		}

		source := "built-in"
		if registry.IsCustom(name) {
			source = "custom"
		}

		marker := ""
		if name == defaultName {
			marker = "*"
		}

		fmt.Fprintf(tw, "%s%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
			name, marker,
			source,
			p.Layout,
			p.SkipRows,
			p.SelectMode,
			yesNo(p.SplitCredits),
			describeProfile(p),
		)
	}

	return tw.Flush()
}

// describeProfile returns the description, or the file patterns of a
// custom profile without one.
func describeProfile(p *config.Profile) string {
	if p.Description != "" {
		return p.Description
	}
	if len(p.FileMatchingPatterns) > 0 {
		return "matches " + strings.Join(p.FileMatchingPatterns, ", ")
	}
	return ""
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
