package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/diamondlightsource/glazed/core"
)

var CheckCommand = &cli.Command{
	Name:  "check",
	Usage: "Validate config and templates without serving",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML config file",
		},
	},
	Action: func(c *cli.Context) error {
		config, err := core.LoadConfig(c.String("config"))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		renderer, err := core.NewRenderer(config, "dev")
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}

		var failed bool
		for _, name := range renderer.Names() {
			if _, err := renderer.Render(name, map[string]interface{}{
				"Env":      "dev",
				"Path":     "/",
				"Params":   map[string]string{},
				"Endpoint": "/graphql",
			}); err != nil {
				failed = true
				fmt.Printf("❌ %s → %v\n", name, err)
				continue
			}
			fmt.Printf("✅ %s\n", name)
		}

		if failed {
			return cli.Exit("some templates failed to render", 1)
		}

		fmt.Println("✅ All templates validated successfully.")
		return nil
	},
}
