package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/drallgood/shelf-reader/internal/models"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// ratingCell renders a 1-5 rating as stars, or "-" when unrated
func ratingCell(rating int) string {
	if rating <= 0 {
		return "-"
	}
	if rating > 5 {
		rating = 5
	}
	return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
}

func describeRating(user int, summary models.RatingSummary) string {
	var b strings.Builder
	if user > 0 {
		fmt.Fprintf(&b, "Your rating: %d/5. ", user)
	} else {
		b.WriteString("Not rated by you. ")
	}
	switch summary.TotalRatings {
	case 0:
		b.WriteString("No ratings yet")
	case 1:
		fmt.Fprintf(&b, "Average %.1f from 1 rating", summary.AverageRating)
	default:
		fmt.Fprintf(&b, "Average %.1f from %d ratings", summary.AverageRating, summary.TotalRatings)
	}
	return b.String()
}
