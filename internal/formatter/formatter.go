// package formatter renders receipts to the supported output formats (text receipt, Markdown, CSV, JSON)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/desertthunder/spotrcpt/internal/models"
	"github.com/desertthunder/spotrcpt/internal/shared"
)

// Format names an output renderer.
type Format string

const (
	Text     Format = "text"
	Markdown Format = "markdown"
	CSV      Format = "csv"
	JSON     Format = "json"
)

// Formats lists every renderer in help-text order.
var Formats = []Format{Text, Markdown, CSV, JSON}

// ReceiptWidth is the column width of the text receipt.
const ReceiptWidth = 40

const dateLayout = "02 Jan 2006"

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text", "txt":
		return Text, nil
	case "markdown", "md":
		return Markdown, nil
	case "csv":
		return CSV, nil
	case "json":
		return JSON, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, s)
}

// Extension returns the file extension conventionally used for f.
func (f Format) Extension() string {
	switch f {
	case Markdown:
		return ".md"
	case CSV:
		return ".csv"
	case JSON:
		return ".json"
	}
	return ".txt"
}

// Render returns receipt in format f.
func Render(f Format, receipt *models.Receipt) ([]byte, error) {
	switch f {
	case Text:
		return ExportToText(receipt)
	case Markdown:
		return ExportToMarkdown(receipt)
	case CSV:
		return ExportToCSV(receipt)
	case JSON:
		return ExportToJSON(receipt)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidFlag, f)
}

// Write renders receipt in format f to w.
func Write(f Format, w io.Writer, receipt *models.Receipt) error {
	data, err := Render(f, receipt)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write %s receipt: %w", f, err)
	}
	return nil
}

// WriteFile renders receipt to path, defaulting to receipt_<range><ext> when path is empty.
func WriteFile(f Format, receipt *models.Receipt, path string) (string, error) {
	if path == "" {
		path = "receipt_" + string(receipt.TimeRange) + f.Extension()
	}

	data, err := Render(f, receipt)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write receipt file: %w", err)
	}
	return path, nil
}

// ExportToText renders the fixed-width receipt:
//
//	========================================
//	           SPOTIFY RECEIPT
//	           Last 4 Weeks
//	----------------------------------------
//	CUSTOMER: Ada
//	DATE: 02 Jan 2025
//	----------------------------------------
//	01. Song Title                      3:25
//	    Artist
//	----------------------------------------
//	ITEM COUNT:                            1
//	TOTAL:                              3:25
//	========================================
//	       THANK YOU FOR LISTENING!
func ExportToText(receipt *models.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	rule := strings.Repeat("=", ReceiptWidth) + "\n"
	sep := strings.Repeat("-", ReceiptWidth) + "\n"

	buf.WriteString(rule)
	buf.WriteString(center("SPOTIFY RECEIPT"))
	buf.WriteString(center(receipt.TimeRange.Label()))
	buf.WriteString(sep)
	fmt.Fprintf(&buf, "CUSTOMER: %s\n", truncate(receipt.Owner.Name(), ReceiptWidth-len("CUSTOMER: ")))
	fmt.Fprintf(&buf, "DATE: %s\n", receipt.CreatedAt().Format(dateLayout))
	buf.WriteString(sep)

	if len(receipt.Lines) == 0 {
		buf.WriteString(center("No tracks available"))
	}
	for _, line := range receipt.Lines {
		prefix := fmt.Sprintf("%02d. ", line.Position)
		duration := shared.FormatDuration(line.DurationMS)
		buf.WriteString(columns(prefix+line.Title, duration))
		buf.WriteString("    " + truncate(line.Artist, ReceiptWidth-4) + "\n")
	}

	buf.WriteString(sep)
	buf.WriteString(columns("ITEM COUNT:", strconv.Itoa(len(receipt.Lines))))
	buf.WriteString(columns("TOTAL:", shared.FormatLongDuration(receipt.TotalDurationMS())))
	buf.WriteString(rule)
	buf.WriteString(center("THANK YOU FOR LISTENING!"))

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a receipt as a Markdown table.
func ExportToMarkdown(receipt *models.Receipt) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s's Receipt\n\n", receipt.Owner.Name())
	fmt.Fprintf(&buf, "**Range**: %s\n", receipt.TimeRange.Label())
	fmt.Fprintf(&buf, "**Date**: %s\n", receipt.CreatedAt().Format(dateLayout))
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(receipt.Lines))

	buf.WriteString("| # | Title | Artist | Duration |\n")
	buf.WriteString("|---|-------|--------|----------|\n")
	for _, line := range receipt.Lines {
		fmt.Fprintf(&buf, "| %d | %s | %s | %s |\n",
			line.Position, escapeCell(line.Title), escapeCell(line.Artist), shared.FormatDuration(line.DurationMS))
	}

	fmt.Fprintf(&buf, "\n**Total**: %s\n", shared.FormatLongDuration(receipt.TotalDurationMS()))
	return buf.Bytes(), nil
}

// ExportToCSV renders receipt lines with columns: Position, Title, Artist, Album, Duration, DurationMS
func ExportToCSV(receipt *models.Receipt) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "Duration", "DurationMS"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, line := range receipt.Lines {
		record := []string{
			strconv.Itoa(line.Position),
			line.Title,
			line.Artist,
			line.Album,
			shared.FormatDuration(line.DurationMS),
			strconv.Itoa(line.DurationMS),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ExportToJSON renders the receipt as indented JSON.
func ExportToJSON(receipt *models.Receipt) ([]byte, error) {
	data, err := json.MarshalIndent(receipt, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal receipt: %w", err)
	}
	return append(data, '\n'), nil
}

// columns left-aligns left and right-aligns right on one receipt row, truncating left when needed.
func columns(left, right string) string {
	room := ReceiptWidth - runewidth.StringWidth(right) - 1
	left = truncate(left, room)
	pad := ReceiptWidth - runewidth.StringWidth(left) - runewidth.StringWidth(right)
	return left + strings.Repeat(" ", pad) + right + "\n"
}

func center(s string) string {
	s = truncate(s, ReceiptWidth)
	pad := (ReceiptWidth - runewidth.StringWidth(s)) / 2
	return strings.Repeat(" ", pad) + s + "\n"
}

// truncate shortens s to at most width display cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "...")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
