package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"net/url"
	"os/signal"
	"path"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/pinalbum/internal/config"
	"github.com/kozaktomas/pinalbum/internal/coord"
	"github.com/kozaktomas/pinalbum/internal/syncer"
)

var albumCmd = &cobra.Command{
	Use:   "album",
	Short: "Inspect and manage location albums",
}

var albumShowCmd = &cobra.Command{
	Use:   "show <album-id>",
	Short: "Show an album and its photos",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlbumShow,
}

var albumSyncCmd = &cobra.Command{
	Use:   "sync <album-id>",
	Short: "Search again and download missing photos",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlbumSync,
}

var albumReloadCmd = &cobra.Command{
	Use:   "reload <album-id>",
	Short: "Discard the album's photos and download a fresh selection",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlbumReload,
}

var albumDeleteItemsCmd = &cobra.Command{
	Use:   "delete-items <album-id> <item-id>...",
	Short: "Remove photos from an album",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runAlbumDeleteItems,
}

var albumExportCmd = &cobra.Command{
	Use:   "export <album-id> <dir>",
	Short: "Write the album's downloaded photos to a directory",
	Args:  cobra.ExactArgs(2),
	RunE:  runAlbumExport,
}

func init() {
	rootCmd.AddCommand(albumCmd)
	albumCmd.AddCommand(albumShowCmd, albumSyncCmd, albumReloadCmd, albumDeleteItemsCmd, albumExportCmd)
}

func runAlbumShow(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	a, err := store.GetAlbum(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get album: %w", err)
	}
	loc, err := store.GetLocation(ctx, a.LocationID)
	if err != nil {
		return fmt.Errorf("failed to get location: %w", err)
	}
	items, err := store.QueryItems(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	progress, err := store.Progress(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("failed to get progress: %w", err)
	}

	fmt.Printf("Album:      %s\n", a.ID)
	fmt.Printf("Location:   %s (%.5f, %.5f)\n", loc.Title, loc.Latitude, loc.Longitude)
	fmt.Printf("State:      %s\n", a.SyncState)
	fmt.Printf("Generation: %d\n", a.Generation)
	if ratio, ok := progress.Ratio(); ok {
		fmt.Printf("Progress:   %d/%d (%.0f%%)\n", progress.Filled, progress.Total, ratio*100)
	} else {
		fmt.Printf("Progress:   no photos\n")
	}
	if a.LastError != "" {
		fmt.Printf("Last error: %s\n", a.LastError)
	}
	if len(items) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ITEM\tSIZE\tSOURCE")
	fmt.Fprintln(w, "----\t----\t------")
	for i := range items {
		size := "-"
		if items[i].HasPayload() {
			size = fmt.Sprintf("%d", len(items[i].Payload))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", items[i].ID, size, items[i].SourceURI)
	}
	w.Flush()
	return nil
}

// runForeground starts a run with start and renders it until it ends.
func runForeground(albumID string, start func(*syncer.Engine) (*coord.Run, error)) error {
	cfg := config.Load()
	if err := requireFlickrKey(cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := start(engine)
	if err != nil {
		return err
	}
	if err := waitForRun(ctx, engine, run, albumID); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted; run 'pinalbum resume' to continue the download.")
			return nil
		}
		return fmt.Errorf("album sync failed: %w", err)
	}
	return printAlbumSummary(ctx, engine, albumID)
}

func runAlbumSync(cmd *cobra.Command, args []string) error {
	albumID := args[0]
	return runForeground(albumID, func(engine *syncer.Engine) (*coord.Run, error) {
		if _, err := engine.Store().GetAlbum(context.Background(), albumID); err != nil {
			return nil, fmt.Errorf("failed to get album: %w", err)
		}
		return engine.StartSync(albumID)
	})
}

func runAlbumReload(cmd *cobra.Command, args []string) error {
	albumID := args[0]
	return runForeground(albumID, func(engine *syncer.Engine) (*coord.Run, error) {
		run, err := engine.Reload(albumID)
		if err != nil {
			return nil, fmt.Errorf("failed to reload album: %w", err)
		}
		return run, nil
	})
}

func runAlbumDeleteItems(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	albumID := args[0]
	if err := engine.DeleteItems(ctx, albumID, args[1:]); err != nil {
		return fmt.Errorf("failed to delete items: %w", err)
	}
	return printAlbumSummary(ctx, engine, albumID)
}

func runAlbumExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	items, err := store.QueryItems(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}

	dir := args[1]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("could not create %s: %w", dir, err)
	}

	written := 0
	for i := range items {
		if !items[i].HasPayload() {
			continue
		}
		name := filepath.Join(dir, exportName(items[i].SourceURI, items[i].ID))
		if err := os.WriteFile(name, items[i].Payload, 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", name, err)
		}
		written++
	}
	fmt.Printf("Wrote %d of %d photos to %s\n", written, len(items), dir)
	return nil
}

// exportName uses the last path element of the source URI, prefixed with the item ID
// so different albums never collide.
func exportName(sourceURI, itemID string) string {
	base := "photo.jpg"
	if u, err := url.Parse(sourceURI); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" {
			base = b
		}
	}
	return itemID + "_" + base
}
