package main

import (
	"context"
	"fmt"
	"log"
	_ "time/tzdata"

	corecmd "github.com/m3rciful/remindbot/core/cmd"
	"github.com/m3rciful/remindbot/internal/app"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		EnvFiles:          []string{".env"},
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := app.LoadConfig(path)
			if err != nil {
				return nil, err
			}
			return cfg, nil
		},
		Bootstrap: func(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*app.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			return app.Bootstrap(ctx, cfg)
		},
	})
	if err != nil {
		log.Fatal(err)
	}
}
