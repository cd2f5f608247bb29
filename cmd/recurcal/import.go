package main

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cyp0633/recurcal/client"
	"github.com/cyp0633/recurcal/event"
)

type importFlags struct {
	server   string
	email    string
	password string
	link     string
	verbose  bool
}

func newImportCmd() *cobra.Command {
	var f importFlags

	cmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Import an exported event, iCalendar file or share link into a server",
		Long: `Imports an event into a running recurcal server.

The file may be a JSON export or an .ics file. Use --link to import a share
link instead. The password defaults to $RECURCAL_PASSWORD.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 0) == (f.link == "") {
				return errors.New("pass either a file or --link")
			}
			if f.password == "" {
				f.password = os.Getenv("RECURCAL_PASSWORD")
			}
			if f.email == "" || f.password == "" {
				return errors.New("--email and a password are required")
			}

			level := slog.LevelWarn
			if f.verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			c, err := client.New(f.server,
				client.WithLogger(logger),
				client.WithHTTPClient(&http.Client{
					Timeout:   30 * time.Second,
					Transport: client.NewBasicAuthTransport(f.email, f.password, nil, logger),
				}))
			if err != nil {
				return err
			}

			var ev *event.Event
			if f.link != "" {
				ev, err = c.ImportShareLink(cmd.Context(), f.link)
			} else {
				ev, err = importFile(cmd, c, args[0])
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %q as %s\n", ev.Name, ev.ID)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.server, "server", "http://localhost:8080", "server base URL")
	flags.StringVar(&f.email, "email", "", "account email")
	flags.StringVar(&f.password, "password", "", "account password")
	flags.StringVar(&f.link, "link", "", "share link to import")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "log requests to stderr")

	return cmd
}

func importFile(cmd *cobra.Command, c *client.Client, path string) (*event.Event, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if isCalendar(path, data) {
		return c.ImportICS(cmd.Context(), data)
	}
	return c.Import(cmd.Context(), data)
}

func isCalendar(path string, data []byte) bool {
	if strings.EqualFold(filepath.Ext(path), ".ics") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("BEGIN:VCALENDAR"))
}
