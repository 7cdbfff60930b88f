package command

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/server/bootstrap"
)

// BackupCommand returns the backup subcommand group.
func BackupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Copy the snapshot store to and from a file",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Write every stored record to FILE (- for stdout)",
				ArgsUsage: "FILE",
				Action:    runtimeAction(backupCreate),
			},
			{
				Name:      "load",
				Usage:     "Replace the store with a backup FILE (- for stdin)",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "force",
						Aliases: []string{"f"},
						Usage:   "Skip confirmation",
					},
				},
				Action: runtimeAction(backupLoad),
			},
		},
	}
}

func backupCreate(c *cli.Context, rt *bootstrap.Runtime) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("backup file is required (usage: %s FILE)", c.Command.HelpName)
	}

	if path == "-" {
		if res := rt.Store.Backup(c.Context, c.App.Writer); !res.IsOK() {
			return res.Err
		}
		return nil
	}

	// FILE is replaced only once the backup is complete.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".wsnap-backup-*")
	if err != nil {
		return fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if res := rt.Store.Backup(c.Context, tmp); !res.IsOK() {
		tmp.Close()
		return res.Err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename backup file: %w", err)
	}
	fmt.Fprintf(c.App.Writer, "Backup written to %s.\n", path)
	return nil
}

func backupLoad(c *cli.Context, rt *bootstrap.Runtime) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("backup file is required (usage: %s FILE)", c.Command.HelpName)
	}
	if path != "-" && !c.Bool("force") && !confirm(c, "Loading a backup replaces every stored snapshot. Continue?") {
		fmt.Fprintln(c.App.Writer, "Cancelled.")
		return nil
	}

	var r io.Reader = c.App.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open backup file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if res := rt.Store.LoadBackup(c.Context, r); !res.IsOK() {
		return res.Err
	}
	fmt.Fprintf(c.App.Writer, "Backup %s loaded.\n", path)
	return nil
}
