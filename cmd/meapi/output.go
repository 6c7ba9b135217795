package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/meapi/internal/profile"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// stderr receives status lines. Tests swap it out.
var stderr io.Writer = os.Stderr

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(stderr, colorize(colorCyan, "→ "+msg))
}

// writeCard prints a profile the way the page draws a card.
func writeCard(w io.Writer, p profile.Profile) {
	fmt.Fprintf(w, "%s %s\n", colorize(colorCyan, fmt.Sprintf("#%d", p.ID)), colorize(colorBold, p.Name))
	fmt.Fprintf(w, "  📧 %s\n", p.Email)
	if p.Phone != "" {
		fmt.Fprintf(w, "  📱 %s\n", p.Phone)
	}
	if p.Bio != "" {
		fmt.Fprintf(w, "  %s\n", p.Bio)
	}
	if badges := skillBadges(p.Skills); badges != "" {
		fmt.Fprintf(w, "  %s\n", badges)
	}
}

// writeDetail adds the server-assigned fields to a card.
func writeDetail(w io.Writer, p profile.Profile) {
	writeCard(w, p)
	if !p.CreatedAt.IsZero() {
		fmt.Fprintf(w, "  created %s\n", p.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if !p.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "  updated %s\n", p.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
	}
}

func writeCards(w io.Writer, profiles []profile.Profile, empty string) {
	if len(profiles) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for i, p := range profiles {
		if i > 0 {
			fmt.Fprintln(w)
		}
		writeCard(w, p)
	}
}

func skillBadges(skills string) string {
	tokens := profile.SplitSkills(skills)
	for i, s := range tokens {
		tokens[i] = colorize(colorYellow, "["+s+"]")
	}
	return strings.Join(tokens, " ")
}

func profileCount(n int) string {
	if n == 1 {
		return "1 profile"
	}
	return fmt.Sprintf("%d profiles", n)
}
