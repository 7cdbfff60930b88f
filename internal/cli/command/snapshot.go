package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/core/domain"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/server/bootstrap"
)

// snapshotView is the listing row of a stored snapshot.
type snapshotView struct {
	SessionID        string `json:"session_id" yaml:"session_id"`
	CreatedAt        int64  `json:"created_at" yaml:"created_at" table:"time"`
	FileCount        int    `json:"file_count" yaml:"file_count"`
	Size             int64  `json:"size" yaml:"size"`
	Encrypted        bool   `json:"encrypted" yaml:"encrypted" table:"wide"`
	LastStartCommand string `json:"last_start_command,omitempty" yaml:"last_start_command,omitempty" table:"wide"`
}

type fileView struct {
	Path string `json:"path" yaml:"path"`
	Size int    `json:"size" yaml:"size"`
}

type recordView struct {
	SessionID        string             `json:"session_id" yaml:"session_id"`
	CreatedAt        int64              `json:"created_at" yaml:"created_at" table:"time"`
	Root             string             `json:"root,omitempty" yaml:"root,omitempty"`
	FileCount        int                `json:"file_count" yaml:"file_count"`
	Size             int64              `json:"size" yaml:"size"`
	LastStartCommand string             `json:"last_start_command,omitempty" yaml:"last_start_command,omitempty"`
	Files            []domain.FileEntry `json:"files,omitempty" yaml:"files,omitempty" table:"-"`
}

func newRecordView(rec *domain.Record) recordView {
	return recordView{
		SessionID:        rec.SessionID,
		CreatedAt:        rec.CreatedAt,
		Root:             rec.Root,
		FileCount:        rec.FileCount(),
		Size:             rec.TotalBytes(),
		LastStartCommand: rec.LastStartCommand,
	}
}

// SaveCommand returns the save command.
func SaveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "Capture the workspace as the snapshot of a session",
		ArgsUsage: "SESSION_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "start-command",
				Aliases: []string{"s"},
				Usage:   "Launch command recorded with the snapshot",
			},
		},
		Action: runtimeAction(snapshotSave),
	}
}

func snapshotSave(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	rec, err := rt.Service.Save(c.Context, id, service.SaveOptions{LastStartCommand: c.String("start-command")})
	if err != nil {
		return err
	}
	return render(c, newRecordView(rec))
}

// RestoreCommand returns the restore command.
func RestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write the snapshot of a session onto the workspace",
		ArgsUsage: "SESSION_ID",
		Action:    runtimeAction(snapshotRestore),
	}
}

func snapshotRestore(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	res, err := rt.Service.Restore(c.Context, id)
	if err != nil {
		return err
	}
	if err := render(c, res); err != nil {
		return err
	}
	if res.Failed > 0 {
		return fmt.Errorf("%d of %d files could not be written", res.Failed, res.Failed+res.Written)
	}
	return nil
}

// ShowCommand returns the show command.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Aliases:   []string{"get"},
		Usage:     "Show a stored snapshot",
		ArgsUsage: "SESSION_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "files",
				Aliases: []string{"f"},
				Usage:   "List captured files (contents with json/yaml output)",
			},
		},
		Action: runtimeAction(snapshotShow),
	}
}

func snapshotShow(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	rec, err := rt.Service.Get(c.Context, id)
	if err != nil {
		return err
	}

	view := newRecordView(rec)
	if !c.Bool("files") {
		return render(c, view)
	}
	if !tableOutput(c) {
		view.Files = rec.Files
		return render(c, view)
	}

	files := make([]fileView, len(rec.Files))
	for i, f := range rec.Files {
		files[i] = fileView{Path: rec.RelativePath(f.Path), Size: len(f.Content)}
	}
	if err := render(c, view); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer)
	return render(c, files)
}

// ListCommand returns the list command.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored snapshots",
		Action:  runtimeAction(snapshotList),
	}
}

func snapshotList(c *cli.Context, rt *bootstrap.Runtime) error {
	summaries, err := rt.Service.List(c.Context)
	if err != nil {
		return err
	}

	flags, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}
	items := make([]snapshotView, 0, len(summaries))
	for _, s := range summaries {
		v := snapshotView{
			SessionID: s.SessionID,
			CreatedAt: s.CreatedAt,
			FileCount: s.FileCount,
			Size:      int64(s.Size),
			Encrypted: s.Encrypted,
		}
		if flags.Wide {
			v.LastStartCommand, _ = rt.Service.StartCommand(c.Context, s.SessionID)
		}
		items = append(items, v)
	}

	if err := render(c, items); err != nil {
		return err
	}
	if tableOutput(c) {
		fmt.Fprintf(c.App.Writer, "\nTotal: %d snapshots\n", len(items))
	}
	return nil
}

// DeleteCommand returns the delete command.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete the snapshot and start command of a session",
		ArgsUsage: "SESSION_ID",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"f"},
				Usage:   "Skip confirmation",
			},
		},
		Action: runtimeAction(snapshotDelete),
	}
}

func snapshotDelete(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	if !c.Bool("force") && !confirm(c, fmt.Sprintf("Delete snapshot %s?", id)) {
		fmt.Fprintln(c.App.Writer, "Cancelled.")
		return nil
	}
	if err := rt.Service.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Snapshot %s deleted.\n", id)
	return nil
}

// StartCommandCommand returns the start-command subcommand group.
func StartCommandCommand() *cli.Command {
	return &cli.Command{
		Name:  "start-command",
		Usage: "Manage the launch command of a session",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the command a restore would use",
				ArgsUsage: "SESSION_ID",
				Action:    runtimeAction(startCommandGet),
			},
			{
				Name:      "set",
				Usage:     "Record the launch command",
				ArgsUsage: "SESSION_ID COMMAND...",
				Action:    runtimeAction(startCommandSet),
			},
			{
				Name:      "clear",
				Usage:     "Forget the recorded launch command",
				ArgsUsage: "SESSION_ID",
				Action:    runtimeAction(startCommandClear),
			},
		},
	}
}

type startCommandView struct {
	SessionID string `json:"session_id" yaml:"session_id"`
	Command   string `json:"command" yaml:"command"`
}

func startCommandGet(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	cmd, err := rt.Service.StartCommand(c.Context, id)
	if err != nil {
		return err
	}
	if tableOutput(c) {
		if cmd == "" {
			return errors.New("no start command recorded for " + id)
		}
		_, err := fmt.Fprintln(c.App.Writer, cmd)
		return err
	}
	return render(c, startCommandView{SessionID: id, Command: cmd})
}

func startCommandSet(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	cmd := strings.TrimSpace(strings.Join(c.Args().Tail(), " "))
	if cmd == "" {
		return errors.New("command is required (use clear to remove it)")
	}
	if err := rt.Service.SetStartCommand(c.Context, id, cmd); err != nil {
		return err
	}
	return render(c, startCommandView{SessionID: id, Command: cmd})
}

func startCommandClear(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	if err := rt.Service.SetStartCommand(c.Context, id, ""); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Start command of %s cleared.\n", id)
	return nil
}
