// Package process implements the offline single-chunk debug subcommand.
package process

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiaszanolli/auralis-go/internal/audiofile"
	"github.com/matiaszanolli/auralis-go/internal/conf"
	"github.com/matiaszanolli/auralis-go/internal/library"
	"github.com/matiaszanolli/auralis-go/internal/processor"
)

// Command returns the process subcommand. It masters one chunk of a file
// and writes the payload, useful for auditioning presets without a client.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		preset    string
		intensity float64
		chunkIdx  int
		outDir    string
	)

	processCmd := &cobra.Command{
		Use:   "process <file>",
		Short: "Master a single chunk of a file for auditioning",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			fi, err := os.Stat(path)
			if err != nil {
				return err
			}
			info, err := audiofile.Open(path)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = settings.Cache.Dir
			}
			proc := processor.New(outDir, audiofile.Subtype(settings.Cache.WAVSubtype), nil)

			track := processor.Track{
				ID:        0,
				Path:      path,
				Signature: library.FileSignature(path, fi.Size(), fi.ModTime()),
				DurationS: info.Duration(),
			}

			started := time.Now()
			res, err := proc.ProcessChunk(context.Background(), track, preset, intensity, chunkIdx)
			if err != nil {
				return err
			}
			fmt.Printf("wrote %s (%d frames, %d ch, %v)\n",
				res.PayloadPath, res.CoreFrames, res.Channels, time.Since(started).Round(time.Millisecond))
			return nil
		},
	}

	processCmd.Flags().StringVarP(&preset, "preset", "p", "adaptive", "Mastering preset (adaptive, gentle, warm, bright, punchy, none)")
	processCmd.Flags().Float64VarP(&intensity, "intensity", "i", 1.0, "Processing intensity 0.0-1.0")
	processCmd.Flags().IntVarP(&chunkIdx, "chunk", "c", 0, "Chunk index to process")
	processCmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (defaults to the cache dir)")

	return processCmd
}
