// Package report renders runs for the terminal and for image files:
// asciigraph charts, lipgloss summaries and gonum/plot PNG figures.
package report
