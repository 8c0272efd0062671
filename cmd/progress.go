package cmd

import (
	"context"
	"fmt"

	"github.com/schollz/progressbar/v3"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/notify"
	"github.com/kozaktomas/pinalbum/internal/syncer"
)

// albumProgress renders an album download as a progress bar fed by engine events.
type albumProgress struct {
	bar   *progressbar.ProgressBar
	title string
	sub   *notify.Subscription
}

// watchAlbum subscribes to the album and seeds the bar with its current progress.
func watchAlbum(ctx context.Context, engine *syncer.Engine, albumID, title string) *albumProgress {
	p := &albumProgress{
		title: title,
		bar: progressbar.NewOptions(-1,
			progressbar.OptionSetDescription(title),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionFullWidth(),
		),
	}
	p.sub = engine.Subscribe(albumID, p.handle)

	if current, err := engine.Progress(ctx, albumID); err == nil && current.Total > 0 {
		p.bar.ChangeMax(current.Total)
		_ = p.bar.Set(current.Filled)
	}
	return p
}

func (p *albumProgress) handle(e notify.Event) {
	switch e.Type {
	case notify.EventItemsReplaced:
		p.bar.Reset()
		p.bar.ChangeMax(e.Count)
	case notify.EventItemPayloadSet:
		_ = p.bar.Add(1)
	case notify.EventItemsDeleted:
		p.bar.ChangeMax(e.Remaining)
	case notify.EventSyncStateChanged:
		p.bar.Describe(fmt.Sprintf("%s [%s]", p.title, e.State))
	}
}

func (p *albumProgress) stop() {
	p.sub.Unsubscribe()
	_ = p.bar.Finish()
	fmt.Println()
}

// waitForRun blocks until run ends or ctx is cancelled, rendering progress meanwhile.
func waitForRun(ctx context.Context, engine *syncer.Engine, run *coord.Run, title string) error {
	p := watchAlbum(ctx, engine, run.AlbumID(), title)
	defer p.stop()

	select {
	case <-run.Done():
		return run.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// printAlbumSummary prints the album's state after a sync.
func printAlbumSummary(ctx context.Context, engine *syncer.Engine, albumID string) error {
	a, err := engine.Store().GetAlbum(ctx, albumID)
	if err != nil {
		return fmt.Errorf("could not read album: %w", err)
	}
	progress, err := engine.Progress(ctx, albumID)
	if err != nil {
		return fmt.Errorf("could not read progress: %w", err)
	}

	fmt.Printf("Album %s: %s, %d/%d photos downloaded\n", a.ID, a.SyncState, progress.Filled, progress.Total)
	switch {
	case a.SyncState == album.StateFailed:
		fmt.Printf("Last error: %s\n", a.LastError)
	case a.NoItemsFound:
		fmt.Println("No photos were found around this location.")
	case !progress.Complete(a.NoItemsFound):
		fmt.Println("Some photos could not be downloaded; run 'pinalbum album sync' to retry.")
	}
	return nil
}
