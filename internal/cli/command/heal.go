package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/AgenciaV10/wsnap/internal/autoheal"
	"github.com/AgenciaV10/wsnap/internal/core/service"
	"github.com/AgenciaV10/wsnap/internal/server/bootstrap"
)

// HealCommand returns the heal command.
func HealCommand() *cli.Command {
	return &cli.Command{
		Name:      "heal",
		Usage:     "Patch the workspace for a preview error and save the session",
		ArgsUsage: "SESSION_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "from",
				Usage: "Read the preview error as JSON from FILE (- for stdin)",
			},
			&cli.StringFlag{
				Name:  "type",
				Value: autoheal.TypeUncaughtException,
				Usage: "Preview error type",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Error message",
			},
			&cli.StringFlag{
				Name:  "stack",
				Usage: "Stack trace naming the failing module",
			},
		},
		Action: runtimeAction(heal),
	}
}

func heal(c *cli.Context, rt *bootstrap.Runtime) error {
	id, err := sessionArg(c)
	if err != nil {
		return err
	}
	e, err := previewError(c)
	if err != nil {
		return err
	}

	patch, err := rt.Healer.Heal(c.Context, e)
	if err != nil {
		return err
	}
	if _, err := rt.Service.Save(c.Context, id, service.SaveOptions{}); err != nil {
		return fmt.Errorf("patched %s but save failed: %w", patch.Path, err)
	}
	return render(c, patch)
}

func previewError(c *cli.Context) (autoheal.PreviewError, error) {
	var e autoheal.PreviewError
	if from := c.String("from"); from != "" {
		var r io.Reader = c.App.Reader
		if from != "-" {
			f, err := os.Open(from)
			if err != nil {
				return e, err
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&e); err != nil {
			return e, fmt.Errorf("decode preview error: %w", err)
		}
		return e, nil
	}

	e = autoheal.PreviewError{
		Type:    c.String("type"),
		Message: c.String("message"),
		Stack:   c.String("stack"),
	}
	if e.Message == "" {
		return e, errors.New("--message or --from is required")
	}
	return e, nil
}
