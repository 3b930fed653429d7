package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/diamondlightsource/glazed"
)

var ServeCommand = &cli.Command{
	Name:  "serve",
	Usage: "Serve the glazed gateway",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
		},
		&cli.BoolFlag{
			Name:  "dev",
			Usage: "Dev mode: live reload, no caching headers",
		},
	},
	Action: func(c *cli.Context) error {
		env := "prod"
		if c.Bool("dev") {
			env = "dev"
		}
		return glazed.Start(glazed.RuntimeConfig{
			Env:        env,
			ConfigFile: c.String("config"),
		})
	},
}
