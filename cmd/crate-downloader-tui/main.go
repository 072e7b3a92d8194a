package main

import (
	"fmt"
	"os"

	"github.com/jarri2di/crate-downloader/internal/config"
	"github.com/jarri2di/crate-downloader/internal/tui"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load()

	v := viper.New()
	cmd := &cobra.Command{
		Use:           "crate-downloader-tui",
		Short:         "Interactive crates.io mirror",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			settings, err := config.FromViper(v)
			if err != nil {
				return err
			}
			return tui.Run(settings, v.GetString("config"))
		},
	}
	config.BindFlags(cmd.Flags(), v)

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
