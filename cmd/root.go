package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "pinalbum",
	Short: "Download Flickr photo albums for places pinned on a map",
	Long: `Pinalbum keeps a photo album for every location you pin. Each album is filled
with geotagged Flickr photos taken around the pin. Downloads resume where they
stopped, and an album can be reloaded with a fresh selection at any time.`,
	SilenceUsage: true,
}

func Execute() {
	defer klog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)
	rootCmd.PersistentFlags().AddGoFlagSet(klogFlags)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
