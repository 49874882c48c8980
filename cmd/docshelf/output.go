package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/docshelf/docshelf/pkg/session"
)

func outputJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func newTable(cmd *cobra.Command) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	return t
}

// render writes v as JSON, or calls fill and renders the table.
func (c *cli) render(cmd *cobra.Command, v any, fill func(t table.Writer)) error {
	if c.format == "json" {
		return outputJSON(cmd.OutOrStdout(), v)
	}
	t := newTable(cmd)
	fill(t)
	t.Render()
	return nil
}

// done prints a confirmation, or {"message": msg} in JSON mode.
func (c *cli) done(cmd *cobra.Command, msg string) error {
	if c.format == "json" {
		return outputJSON(cmd.OutOrStdout(), map[string]string{"message": msg})
	}
	fmt.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func getTerminalWidth() int {
	if width, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && width > 0 {
		return width
	}
	return 80
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func writerIsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isTerminal(f)
}

// truncate cuts s to maxWidth display columns.
func truncate(s string, maxWidth int) string {
	if maxWidth <= 0 || runewidth.StringWidth(s) <= maxWidth {
		return s
	}
	return runewidth.Truncate(s, maxWidth, "…")
}

// titleWidth leaves room for the other columns of a document table.
func titleWidth() int {
	w := getTerminalWidth() - 70
	if w < 20 {
		return 20
	}
	return w
}

func sessionError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, session.ErrNoToken):
		return errors.New("not logged in, run 'docshelf login'")
	case errors.Is(err, session.ErrExpired):
		return errors.New("session expired, run 'docshelf login'")
	case errors.Is(err, session.ErrUnauthenticated):
		return errors.New("session rejected by the server, run 'docshelf login'")
	default:
		return err
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
