package command

import (
	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/infra/buildinfo"
)

// VersionCommand returns the version command.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show build information",
		Action: func(c *cli.Context) error {
			if tableOutput(c) {
				_, err := c.App.Writer.Write([]byte("wsnap " + buildinfo.String() + "\n"))
				return err
			}
			return render(c, buildinfo.Get())
		},
	}
}
