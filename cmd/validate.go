package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/km-arc/go-container/framework/container"
	"github.com/km-arc/go-container/framework/manifest"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Check a service manifest without serving it",
		Long: `validate parses the manifest, checks every entry and applies it to an
empty container. All problems are reported at once.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			m, err := manifest.LoadFile(path)
			if err != nil {
				return err
			}
			if err := m.Apply(container.New()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d services, %d aliases, %d tags)\n",
				path, len(m.Services), len(m.Aliases), len(m.Tags))
			return nil
		},
	}
}
