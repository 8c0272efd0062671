package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/pinalbum/internal/album"
	"github.com/kozaktomas/pinalbum/internal/config"
)

var pinCmd = &cobra.Command{
	Use:   "pin",
	Short: "Manage pinned locations",
}

var pinAddCmd = &cobra.Command{
	Use:   "add <latitude> <longitude>",
	Short: "Pin a location and download its album",
	Long: `Pins a location and downloads Flickr photos taken around it.
Use a double dash before negative coordinates: pinalbum pin add -- -33.86 151.21`,
	Args: cobra.ExactArgs(2),
	RunE: runPinAdd,
}

var pinListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pinned locations with their album state",
	Args:  cobra.NoArgs,
	RunE:  runPinList,
}

var pinDeleteCmd = &cobra.Command{
	Use:   "delete <location-id>",
	Short: "Delete a location together with its album",
	Args:  cobra.ExactArgs(1),
	RunE:  runPinDelete,
}

func init() {
	rootCmd.AddCommand(pinCmd)
	pinCmd.AddCommand(pinAddCmd, pinListCmd, pinDeleteCmd)

	pinAddCmd.Flags().String("title", "", "Title of the location")
	pinAddCmd.Flags().Bool("no-wait", false, "Return after pinning without waiting for the download")
}

func parseCoordinate(name, value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return v, nil
}

func runPinAdd(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := requireFlickrKey(cfg); err != nil {
		return err
	}

	lat, err := parseCoordinate("latitude", args[0])
	if err != nil {
		return err
	}
	lon, err := parseCoordinate("longitude", args[1])
	if err != nil {
		return err
	}
	if err := album.ValidateCoordinates(lat, lon); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	loc, a, run, err := engine.CreateLocation(ctx, lat, lon, mustGetString(cmd, "title"))
	if err != nil {
		return fmt.Errorf("failed to pin location: %w", err)
	}
	fmt.Printf("Pinned %q (%s), album %s\n", loc.Title, loc.ID, a.ID)

	if mustGetBool(cmd, "no-wait") {
		// Leaving now cancels the run; the next 'pinalbum resume' picks it up.
		return nil
	}

	if err := waitForRun(ctx, engine, run, loc.Title); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Println("Interrupted; run 'pinalbum resume' to continue the download.")
			return nil
		}
		return fmt.Errorf("album sync failed: %w", err)
	}
	return printAlbumSummary(ctx, engine, a.ID)
}

func runPinList(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	locations, err := store.ListLocations(ctx)
	if err != nil {
		return fmt.Errorf("failed to list locations: %w", err)
	}
	if len(locations) == 0 {
		fmt.Println("No locations pinned.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "LOCATION\tTITLE\tLAT\tLON\tALBUM\tSTATE\tPHOTOS")
	fmt.Fprintln(w, "--------\t-----\t---\t---\t-----\t-----\t------")

	for i := range locations {
		loc := &locations[i]
		a, err := store.GetAlbumByLocation(ctx, loc.ID)
		if err != nil {
			return fmt.Errorf("failed to get album of %s: %w", loc.ID, err)
		}
		progress, err := store.Progress(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("failed to get progress of %s: %w", a.ID, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%.5f\t%.5f\t%s\t%s\t%d/%d\n",
			loc.ID, loc.Title, loc.Latitude, loc.Longitude, a.ID, a.SyncState, progress.Filled, progress.Total)
	}

	w.Flush()

	fmt.Printf("\nTotal: %d locations\n", len(locations))
	return nil
}

func runPinDelete(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	engine, cleanup, err := openEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := engine.DeleteLocation(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to delete location: %w", err)
	}
	fmt.Printf("Deleted location %s\n", args[0])
	return nil
}
