// root.go cobra root command
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/matiaszanolli/auralis-go/cmd/library"
	"github.com/matiaszanolli/auralis-go/cmd/process"
	"github.com/matiaszanolli/auralis-go/cmd/serve"
	"github.com/matiaszanolli/auralis-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "auralis",
		Short: "Auralis interactive mastering server",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug output")

	subcommands := []*cobra.Command{
		serve.Command(settings),
		library.Command(settings),
		process.Command(settings),
	}
	rootCmd.AddCommand(subcommands...)

	return rootCmd
}
