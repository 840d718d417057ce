package cmd

import (
	"bytes"
	"fmt"
	"os"

	"PlayDeck/core/tags"
	"PlayDeck/core/track"
	"PlayDeck/model"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect FILES...",
	Short: "Show the tags PlayDeck reads from MP3 files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := inspectFile(path); err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func inspectFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%d bytes)\n", path, len(data))
	if mt, err := track.Sniff(data); err != nil {
		fmt.Printf("  type:    %v\n", err)
	} else {
		fmt.Printf("  type:    %s\n", mt)
	}

	if tags.HasTrailer(data) {
		printTags("trailer", tags.Extract(data))
	} else {
		fmt.Println("  trailer: none")
	}

	header, err := tags.ProbeHeader(bytes.NewReader(data))
	switch {
	case err != nil:
		fmt.Printf("  header:  %v\n", err)
	case !header.Present:
		fmt.Println("  header:  none")
	default:
		fmt.Printf("  header:  ID3v2.%d, %d frames\n", header.Version, header.Frames)
		printTags("header", header.Tags)
	}
	return nil
}

func printTags(label string, rec model.TagRecord) {
	fmt.Printf("  %s:\n", label)
	fmt.Printf("    title:  %q\n", rec.Title)
	fmt.Printf("    artist: %q\n", rec.Artist)
	fmt.Printf("    album:  %q\n", rec.Album)
	fmt.Printf("    year:   %q\n", rec.Year)
	fmt.Printf("    genre:  %q\n", rec.Genre)
}
