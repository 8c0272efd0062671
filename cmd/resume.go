package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/notify"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Continue interrupted album downloads",
	Long: `Continues every album whose download was interrupted. Albums that already
know their photos only download the missing ones; albums interrupted during the
search start over. Failed albums are left alone; reload them instead.`,
	Args: cobra.NoArgs,
	RunE: runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)

	resumeCmd.Flags().Int("concurrency", 0, "Albums resumed in parallel (defaults to SYNC_RESUME_CONCURRENCY)")
}

func runResume(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := requireFlickrKey(cfg); err != nil {
		return err
	}
	if n := mustGetInt(cmd, "concurrency"); n > 0 {
		cfg.Sync.ResumeConcurrency = n
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	candidates, err := engine.ResumeCandidates(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		fmt.Println("Nothing to resume.")
		return nil
	}
	fmt.Printf("Resuming %d albums\n", len(candidates))

	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Downloading"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)
	for _, a := range candidates {
		sub := engine.Subscribe(a.ID, func(e notify.Event) {
			if e.Type == notify.EventItemPayloadSet {
				_ = bar.Add(1)
			}
		})
		defer sub.Unsubscribe()
	}

	err = engine.Resume(ctx)
	_ = bar.Finish()
	fmt.Println()

	if errors.Is(err, context.Canceled) {
		fmt.Println("Interrupted; run 'pinalbum resume' again to continue.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("some albums could not be resumed: %w", err)
	}

	for _, a := range candidates {
		if err := printAlbumSummary(ctx, engine, a.ID); err != nil {
			return err
		}
	}
	return nil
}
