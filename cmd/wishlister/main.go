package main

import (
	"context"
	"log"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:  "wishlister",
		Usage: "Create, share and import wishlists",
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			backfillCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatalf("wishlister: %v", err)
	}
}
