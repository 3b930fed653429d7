package main

import (
	"log"
	"os"

	clilib "github.com/urfave/cli/v2"

	glazedcli "github.com/diamondlightsource/glazed/cli"
	"github.com/diamondlightsource/glazed/core"
)

func newApp() *clilib.App {
	return &clilib.App{
		Name:  "glazed",
		Usage: "GraphQL gateway and content server for Tiled",
		Commands: []*clilib.Command{
			glazedcli.ServeCommand,
			glazedcli.CheckCommand,
		},
		Action: func(c *clilib.Context) error {
			if c.Args().Present() {
				err := &core.CommandError{Command: c.Args().First()}
				return clilib.Exit(err.Error(), 2)
			}
			return clilib.ShowAppHelp(c)
		},
	}
}

func runApp(args []string) error {
	return newApp().Run(args)
}

func main() {
	if err := runApp(os.Args); err != nil {
		log.Fatal(err)
	}
}
