// Package cli provides shared formatting helpers for the sessioncheck CLI.
package cli

import (
	"os"

	"golang.org/x/term"
)

// colorEnabled is false when NO_COLOR is set (see no-color.org)
var colorEnabled = os.Getenv("NO_COLOR") == ""

// SetColor turns ANSI colors on or off. NO_COLOR always wins.
func SetColor(on bool) {
	colorEnabled = on && os.Getenv("NO_COLOR") == ""
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// TerminalWidth returns the column count of stdout, or 0 when stdout is
// not a terminal.
func TerminalWidth() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return 0
	}
	w, _, err := term.GetSize(fd)
	if err != nil {
		return 0
	}
	return w
}

// SGR parameters of the styles in use
const (
	sgrDim    = "2"
	sgrRed    = "31"
	sgrGreen  = "32"
	sgrYellow = "33"
)

func paint(sgr, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + sgr + "m" + s + "\033[0m"
}

// Green marks healthy results
func Green(s string) string { return paint(sgrGreen, s) }

// Yellow marks results that need a look
func Yellow(s string) string { return paint(sgrYellow, s) }

// Red marks broken sessions and failures
func Red(s string) string { return paint(sgrRed, s) }

// Dim marks placeholders such as unset settings
func Dim(s string) string { return paint(sgrDim, s) }
