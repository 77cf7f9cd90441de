// Package library implements the track registry subcommands.
package library

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matiaszanolli/auralis-go/internal/conf"
	liblib "github.com/matiaszanolli/auralis-go/internal/library"
)

// Command returns the library subcommand tree.
func Command(settings *conf.Settings) *cobra.Command {
	libraryCmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the track registry",
	}

	addCmd := &cobra.Command{
		Use:   "add <file>...",
		Short: "Register audio files for streaming",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := liblib.Open(settings.Library.DBPath)
			if err != nil {
				return err
			}
			for _, path := range args {
				abs, err := filepath.Abs(path)
				if err != nil {
					return err
				}
				title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
				track, err := store.AddTrack(abs, title)
				if err != nil {
					return fmt.Errorf("adding %s: %w", path, err)
				}
				fmt.Printf("added track %d: %s (%.1fs)\n", track.ID, track.Title, track.DurationS)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered tracks",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := liblib.Open(settings.Library.DBPath)
			if err != nil {
				return err
			}
			tracks, err := store.ListTracks()
			if err != nil {
				return err
			}
			for _, t := range tracks {
				fmt.Printf("%4d  %-40s %8.1fs  %s\n", t.ID, t.Title, t.DurationS, t.Path)
			}
			return nil
		},
	}

	libraryCmd.AddCommand(addCmd, listCmd)
	return libraryCmd
}
