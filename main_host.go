//go:build !tinygo

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"conductor/app"
	"conductor/hal"
	"conductor/internal/buildinfo"
	"conductor/internal/config"
)

func main() {
	var (
		cfgPath  string
		headless bool
		hz       int
		ticks    uint64
	)

	root := &cobra.Command{
		Use:     "conductor",
		Short:   "DCC command station",
		Version: buildinfo.Short(),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}

			opt := hal.Options{
				Districts:   len(cfg.Districts),
				ConsolePort: cfg.Console.Port,
				ConsoleBaud: cfg.Console.Baud,
				FlashPath:   cfg.Flash.Path,
				TimeScale:   cfg.Panel.TimeScale,
			}
			newApp := func(h hal.HAL) (func() error, error) {
				return app.New(h, cfg)
			}

			if headless {
				ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
				defer stop()
				err := hal.RunHeadless(ctx, opt, newApp, hal.HeadlessConfig{Hz: hz, Ticks: ticks})
				if err == context.Canceled {
					return nil
				}
				return err
			}
			return hal.RunWindow(opt, newApp)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "Station configuration file (YAML).")
	root.Flags().BoolVar(&headless, "headless", false, "Run without the front-panel window.")
	root.Flags().IntVar(&hz, "hz", 60, "Tick rate in headless mode.")
	root.Flags().Uint64Var(&ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run forever).")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
