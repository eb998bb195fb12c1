package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/hpungsan/folio/internal/config"
	"github.com/hpungsan/folio/internal/display"
	"github.com/hpungsan/folio/internal/errors"
	"github.com/hpungsan/folio/internal/gallery"
	"github.com/hpungsan/folio/internal/media"
	"github.com/hpungsan/folio/internal/web"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(cfg *config.Config, log *zap.Logger) *cli.App {
	if log == nil {
		log = zap.NewNop()
	}
	app := &cli.App{
		Name:    "folio",
		Usage:   "Infinite-depth image gallery with a staged editor",
		Version: Version,
		Commands: []*cli.Command{
			serveCmd(cfg, log),
			formatCmd(),
			inspectCmd(cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// serveCmd creates the serve command.
func serveCmd(cfg *config.Config, log *zap.Logger) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the gallery and its editor over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Aliases: []string{"b"}, Usage: "Address to bind (overrides config)"},
			&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "Port to listen on (overrides config)"},
		},
		Action: func(c *cli.Context) error {
			if bind := c.String("bind"); bind != "" {
				cfg.Bind = bind
			}
			if c.IsSet("port") {
				port := c.Int("port")
				if port < 1 || port > 65535 {
					return outputError(errors.NewInvalidRequest("port must be between 1 and 65535"))
				}
				cfg.Port = port
			}

			host := gallery.NewHost(cfg, log)
			srv := web.NewServer(host, Version, log.Named("web"))
			if err := web.Run(c.Context, srv, host, log.Named("web")); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// FormatOutput is the result of the format command.
type FormatOutput struct {
	Segments []display.Segment `json:"segments"`
	HTML     string            `json:"html"`
}

// formatCmd creates the format command.
func formatCmd() *cli.Command {
	return &cli.Command{
		Name:      "format",
		Usage:     "Show how a headline is styled (reads stdin when no text is given)",
		ArgsUsage: "<text>",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				if text, err = readStdin(); err != nil {
					return outputError(errors.NewInternal(err))
				}
			}
			segs := display.Format(text)
			if segs == nil {
				segs = []display.Segment{}
			}
			return outputJSON(c.App.Writer, FormatOutput{
				Segments: segs,
				HTML:     string(display.HTML(segs)),
			})
		},
	}
}

// InspectOutput is the result of the inspect command.
type InspectOutput struct {
	Name      string         `json:"name"`
	MediaType string         `json:"media_type"`
	Size      int64          `json:"size"`
	Kind      media.Kind     `json:"kind"`
	MaxBytes  int64          `json:"max_bytes"`
	Accepted  bool           `json:"accepted"`
	Error     map[string]any `json:"error,omitempty"`
}

// inspectCmd creates the inspect command.
func inspectCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Check whether a local file would be accepted as an upload",
		ArgsUsage: "<path>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "image", Usage: "Upload kind: image|audio"},
			&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Declared media type (inferred when omitted)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one path is required"))
			}
			kind := media.Kind(c.String("kind"))
			if kind != media.KindImage && kind != media.KindAudio {
				return outputError(errors.NewInvalidRequest(`kind must be "image" or "audio"`))
			}

			f, err := media.OpenDiskFile(c.Args().First(), c.String("type"))
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			limits := media.Limits{Image: cfg.ImageMaxBytes, Audio: cfg.AudioMaxBytes}
			out := InspectOutput{
				Name:      f.Name(),
				MediaType: f.MediaType(),
				Size:      f.Size(),
				Kind:      kind,
				MaxBytes:  limits.Image,
				Accepted:  true,
			}
			if kind == media.KindAudio {
				out.MaxBytes = limits.Audio
			}

			verr := media.NewPipeline(nil, limits, nil).Validate(f, kind)
			if verr != nil {
				out.Accepted = false
				var fErr *errors.FolioError
				if stderrors.As(verr, &fErr) {
					out.Error = map[string]any{"code": fErr.Code, "message": fErr.Message}
				}
			}
			if err := outputJSON(c.App.Writer, out); err != nil {
				return err
			}
			if verr != nil {
				return outputError(verr)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var fErr *errors.FolioError
	if stderrors.As(err, &fErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", fErr.Code, fErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	return !isTerminal()
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
