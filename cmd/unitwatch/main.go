package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"unitwatch/internal/app"
	"unitwatch/internal/config"
)

var version = "dev"

func main() {
	flags := config.RegisterFlags(flag.CommandLine)
	flag.Parse()
	if flags.Version {
		fmt.Println("unitwatch", version)
		return
	}

	ctx := context.Background()
	a, err := app.New(ctx, app.Options{
		ConfigPath: flags.ConfigPath,
		Version:    version,
		Overlay: func(cfg *config.Config) error {
			if err := config.ApplyEnv(cfg, os.LookupEnv); err != nil {
				return err
			}
			flags.Apply(cfg)
			return nil
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(app.ExitFatal)
	}

	if err := a.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(app.ExitCode(err))
	}
}
