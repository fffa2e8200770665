package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"
)

var (
	headerStyle  = color.New(color.FgCyan, color.Bold)
	successStyle = color.New(color.FgGreen, color.Bold)
	errorStyle   = color.New(color.FgRed, color.Bold)
	mutedStyle   = color.New(color.FgHiBlack)
)

// printTable renders rows under header, padding each column to the widest
// cell in it (accounting for wide runes) so output stays aligned in a
// monospace terminal.
func printTable(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); i < len(widths) && w > widths[i] {
				widths[i] = w
			}
		}
	}

	printRow := func(cells []string, style *color.Color) {
		var b strings.Builder
		for i, cell := range cells {
			pad := widths[i] - runewidth.StringWidth(cell)
			b.WriteString(cell)
			b.WriteString(strings.Repeat(" ", pad))
			b.WriteString("  ")
		}
		if style != nil {
			style.Println(b.String())
		} else {
			fmt.Println(b.String())
		}
	}

	printRow(header, headerStyle)
	for _, row := range rows {
		printRow(row, nil)
	}
}
