package color

import (
	"fmt"
	"os"
	"strings"
)

// ANSI color codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Cyan   = "\033[36m"
	Bold   = "\033[1m"
)

// Color represents a colorizer that can be enabled or disabled
type Color struct {
	enabled bool
}

// New creates a new Color instance
func New(enabled bool) *Color {
	return &Color{enabled: enabled && shouldEnableColor()}
}

// shouldEnableColor determines if color should be enabled based on environment
func shouldEnableColor() bool {
	// https://no-color.org/
	if os.Getenv("NO_COLOR") != "" {
		return false
	}

	term := os.Getenv("TERM")
	return term != "dumb" && term != ""
}

func (c *Color) wrap(code, text string) string {
	if !c.enabled {
		return text
	}
	return code + text + Reset
}

// Add colors a string to indicate additions
func (c *Color) Add(text string) string { return c.wrap(Green, text) }

// Change colors a string to indicate modifications
func (c *Color) Change(text string) string { return c.wrap(Yellow, text) }

// Destroy colors a string to indicate deletions
func (c *Color) Destroy(text string) string { return c.wrap(Red, text) }

// Bold makes text bold
func (c *Color) Bold(text string) string { return c.wrap(Bold, text) }

// Cyan colors text cyan (for headers and labels)
func (c *Color) Cyan(text string) string { return c.wrap(Cyan, text) }

// Warn colors warnings yellow
func (c *Color) Warn(text string) string { return c.wrap(Yellow, text) }

// PlanSymbol returns the symbol for a plan action
func (c *Color) PlanSymbol(action string) string {
	switch action {
	case "create":
		return c.Add("+")
	case "update":
		return c.Change("~")
	case "delete":
		return c.Destroy("-")
	default:
		return " "
	}
}

// FormatPlanLine formats one changed view, e.g. "  ~ view.balance (replace)"
func (c *Color) FormatPlanLine(action, address, detail string) string {
	line := fmt.Sprintf("  %s %s", c.PlanSymbol(action), address)
	if detail != "" {
		line += " " + c.Cyan("("+detail+")")
	}
	return line
}

// FormatPlanHeader formats the main plan header
func (c *Color) FormatPlanHeader(added, modified, dropped int) string {
	// Always show all three categories, even if zero
	parts := []string{
		c.Add(fmt.Sprintf("%d to add", added)),
		c.Change(fmt.Sprintf("%d to modify", modified)),
		c.Destroy(fmt.Sprintf("%d to drop", dropped)),
	}

	return fmt.Sprintf("Plan: %s.", strings.Join(parts, ", "))
}
