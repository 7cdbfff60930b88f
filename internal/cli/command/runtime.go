package command

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/cli/output"
	"github.com/AgenciaV10/wsnap/internal/server/bootstrap"
	"github.com/AgenciaV10/wsnap/internal/server/config"
	"github.com/AgenciaV10/wsnap/internal/telemetry/logger"
)

// closeTimeout bounds the wait for mirror pushes when a command exits.
const closeTimeout = 10 * time.Second

// GlobalFlags defines flags available to all commands.
type GlobalFlags struct {
	ConfigFile string
	DataDir    string
	Workspace  string

	Output  output.Format
	Wide    bool
	Verbose bool
}

// ParseGlobalFlags extracts global flags from context.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return nil, err
	}
	return &GlobalFlags{
		ConfigFile: c.String("config"),
		DataDir:    c.String("data-dir"),
		Workspace:  c.String("workspace"),
		Output:     format,
		Wide:       c.Bool("wide"),
		Verbose:    c.Bool("verbose"),
	}, nil
}

// overrides maps the set global flags to configuration keys.
func (f *GlobalFlags) overrides() map[string]any {
	m := make(map[string]any)
	if f.DataDir != "" {
		m["storage.data_dir"] = f.DataDir
	}
	if f.Workspace != "" {
		m["workspace.dir"] = f.Workspace
	}
	return m
}

// loadConfig loads and verifies the configuration named by the flags.
func loadConfig(c *cli.Context) (*config.Config, *GlobalFlags, error) {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return nil, nil, err
	}
	cfg, err := config.Load(flags.ConfigFile, flags.overrides())
	if err != nil {
		return nil, nil, err
	}
	return cfg, flags, nil
}

// cliLogger writes text logs to stderr. Without --verbose only warnings
// and errors are shown.
func cliLogger(c *cli.Context, flags *GlobalFlags) *slog.Logger {
	level := "warn"
	if flags.Verbose {
		level = "debug"
	}
	return logger.NewSlog(logger.Config{
		Level:  level,
		Format: "text",
		Output: c.App.ErrWriter,
	})
}

// runtimeAction wraps fn so it runs with a runtime opened from the
// configuration. The runtime is closed when fn returns.
func runtimeAction(fn func(c *cli.Context, rt *bootstrap.Runtime) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		cfg, flags, err := loadConfig(c)
		if err != nil {
			return err
		}
		rt, err := bootstrap.Open(c.Context, cfg, bootstrap.WithLogger(cliLogger(c, flags)))
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
			defer cancel()
			if cerr := rt.Close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}()
		return fn(c, rt)
	}
}

// render writes data in the selected output format.
func render(c *cli.Context, data any) error {
	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	return output.NewFormatter(flags.Output, flags.Wide).Format(c.App.Writer, data)
}

// tableOutput reports whether the table format is selected.
func tableOutput(c *cli.Context) bool {
	flags, err := ParseGlobalFlags(c)
	return err == nil && flags.Output == output.FormatTable
}

// sessionArg returns the first positional argument.
func sessionArg(c *cli.Context) (string, error) {
	id := c.Args().First()
	if id == "" {
		return "", fmt.Errorf("session id is required (usage: %s %s)", c.Command.HelpName, c.Command.ArgsUsage)
	}
	return id, nil
}

// confirm asks a yes/no question on the app's reader.
func confirm(c *cli.Context, prompt string) bool {
	fmt.Fprintf(c.App.Writer, "%s [y/N]: ", prompt)
	line, err := bufio.NewReader(c.App.Reader).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
