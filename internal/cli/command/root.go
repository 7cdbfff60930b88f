package command

import (
	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/infra/buildinfo"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "wsnap",
		Usage:   "Workspace snapshot management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			SaveCommand(),
			RestoreCommand(),
			ShowCommand(),
			ListCommand(),
			DeleteCommand(),
			StartCommandCommand(),
			HealCommand(),
			BackupCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			_, err := ParseGlobalFlags(c)
			return err
		},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to configuration file",
			EnvVars: []string{"WSNAP_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Snapshot store directory (overrides storage.data_dir)",
		},
		&cli.StringFlag{
			Name:    "workspace",
			Aliases: []string{"W"},
			Usage:   "Workspace directory (overrides workspace.dir)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log component activity to stderr",
		},
	}
}
