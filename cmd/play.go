package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"PlayDeck/core/player"
	"PlayDeck/core/track"
	"PlayDeck/logger"
	"PlayDeck/model"
	"PlayDeck/output/speaker"

	"github.com/spf13/cobra"
)

var playCmd = &cobra.Command{
	Use:   "play [FILES...]",
	Short: "Play MP3 files on the local sound device",
	Long: `Add FILES to the track list and control playback from standard input.
Without FILES the persisted track list is used.

Commands: play, pause, next, prev, stop, repeat, shuffle, seek FRACTION,
vol LEVEL, list, quit.`,
	Example: `  # play two files
  playdeck play a.mp3 b.mp3

  # continue the saved list with the redis store
  STORE_BACKEND=redis playdeck play`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !speaker.Available {
			return fmt.Errorf("this build has no audio output, rebuild with cgo enabled")
		}
		return runPlay(cmd.Context(), args)
	},
}

func init() {
	rootCmd.AddCommand(playCmd)
}

func runPlay(ctx context.Context, files []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	out := speaker.New()
	defer out.Close()

	engine := newEngine(store, out)
	defer engine.Close()
	out.OnEvent(engine.HandleMediaEvent)

	engine.Subscribe(printEvent)

	if len(files) > 0 {
		added := engine.AddSources(ctx, track.DataURI{}, fileSources(files)...)
		fmt.Printf("added %d of %d files\n", added, len(files))
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		if quit := runPlayCommand(engine, strings.Fields(scanner.Text())); quit {
			return nil
		}
		fmt.Print("> ")
	}
	return scanner.Err()
}

func runPlayCommand(engine *player.Engine, fields []string) (quit bool) {
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "play":
		engine.Play()
	case "pause":
		engine.Pause()
	case "next":
		engine.Next()
	case "prev", "previous":
		engine.Previous()
	case "stop":
		engine.Stop()
	case "repeat":
		fmt.Printf("repeat: %v\n", engine.ToggleRepeat())
	case "shuffle":
		fmt.Printf("shuffle: %v\n", engine.ToggleShuffle())
	case "seek":
		f, err := floatArg(fields)
		if err == nil {
			err = engine.SeekFraction(f)
		}
		if err != nil {
			fmt.Println(err)
		}
	case "vol", "volume":
		v, err := floatArg(fields)
		if err == nil {
			err = engine.SetVolume(v)
		}
		if err != nil {
			fmt.Println(err)
		}
	case "list", "ls":
		st := engine.Status()
		for i, t := range st.Tracks {
			marker := " "
			if t.ID == st.Current {
				marker = "*"
			}
			fmt.Printf("%s %2d  %s\n", marker, i+1, t.Title)
		}
	case "quit", "exit", "q":
		return true
	default:
		fmt.Printf("unknown command %q\n", fields[0])
	}
	return false
}

func floatArg(fields []string) (float64, error) {
	if len(fields) < 2 {
		return 0, fmt.Errorf("%s needs a number", fields[0])
	}
	return strconv.ParseFloat(fields[1], 64)
}

// printEvent runs with the engine locked, so it only prints.
func printEvent(ev model.Event) {
	switch ev.Type {
	case model.EventPlaying, model.EventPausing, model.EventIdling:
		fmt.Printf("\n[%s]\n", ev.Type)
	case model.EventError:
		fmt.Printf("\n[error] %s\n", ev.Message)
		logger.Debug("engine error", logger.String("message", ev.Message))
	}
}
