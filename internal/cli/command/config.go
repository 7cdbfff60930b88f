package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/cli/output"
	"github.com/AgenciaV10/wsnap/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the merged configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Validate the configuration",
				Action: configValidate,
			},
		},
	}
}

func configShow(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	// A nested document has no useful table form.
	format := flags.Output
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format, false).Format(c.App.Writer, config.Sanitize(cfg))
}

func configValidate(c *cli.Context) error {
	cfg, flags, err := loadConfig(c)
	if err != nil {
		return err
	}
	source := flags.ConfigFile
	if source == "" {
		source = "defaults and environment"
	}
	fmt.Fprintf(c.App.Writer, "Configuration OK (%s)\n", source)
	fmt.Fprintf(c.App.Writer, "  workspace: %s\n", cfg.Workspace.Dir)
	fmt.Fprintf(c.App.Writer, "  storage:   %s %s\n", cfg.Storage.Engine, cfg.Storage.DataDir)
	if cfg.Mirror.Enabled {
		fmt.Fprintf(c.App.Writer, "  mirror:    %s\n", config.Sanitize(cfg).Mirror.DSN)
	}
	return nil
}
