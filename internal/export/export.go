// Package export downloads the full history of device series from the rig
// and writes them as tab-separated text or an Excel workbook.
package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/rigdash/internal/device"
	"github.com/nerrad567/rigdash/internal/rig"
)

// Format selects the output encoding.
type Format string

const (
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
)

var (
	ErrUnknownFormat = errors.New("export: unknown format")
	ErrNoDevices     = errors.New("export: no devices selected")
)

// ParseFormat accepts "tsv" or "xlsx", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/tab-separated-values; charset=utf-8"
}

// Fetcher reads one device's series. *rig.Client satisfies it.
type Fetcher interface {
	Data(ctx context.Context, kind rig.Kind, id int, rng rig.Range) (*rig.Data, error)
}

// Table is one device's exported series.
type Table struct {
	Device device.Ref
	Data   *rig.Data
}

// Exporter fetches and encodes series.
type Exporter struct {
	fetcher Fetcher
}

// New creates an exporter over fetcher.
func New(fetcher Fetcher) *Exporter {
	return &Exporter{fetcher: fetcher}
}

// Fetch downloads the whole history (start_time=0) of every ref
// concurrently. Tables come back in the order of refs; repeated refs are
// fetched once.
func (e *Exporter) Fetch(ctx context.Context, refs []device.Ref) ([]Table, error) {
	if len(refs) == 0 {
		return nil, ErrNoDevices
	}
	refs = unique(refs)

	tables := make([]Table, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			data, err := e.fetcher.Data(gctx, ref.Kind, ref.ID, rig.Since(0))
			if err != nil {
				return fmt.Errorf("fetching %s: %w", ref, err)
			}
			tables[i] = Table{Device: ref, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

func unique(refs []device.Ref) []device.Ref {
	seen := make(map[device.Ref]bool, len(refs))
	out := make([]device.Ref, 0, len(refs))
	for _, ref := range refs {
		if !seen[ref] {
			seen[ref] = true
			out = append(out, ref)
		}
	}
	return out
}

// Export fetches refs and writes them to w in format f.
func (e *Exporter) Export(ctx context.Context, w io.Writer, f Format, refs []device.Ref) error {
	if _, err := ParseFormat(string(f)); err != nil {
		return err
	}
	tables, err := e.Fetch(ctx, refs)
	if err != nil {
		return err
	}
	if f == FormatXLSX {
		return WriteXLSX(w, tables)
	}
	return WriteTSV(w, tables)
}

// WriteTSV writes each table as a "# kind/id name" line, a header row and
// one "t<TAB>v" row per sample. Tables are separated by a blank line.
func WriteTSV(w io.Writer, tables []Table) error {
	bw := bufio.NewWriter(w)
	for i, tbl := range tables {
		if i > 0 {
			bw.WriteString("\n") //nolint:errcheck // error surfaces on Flush
		}
		fmt.Fprintf(bw, "# %s %s\n", tbl.Device, tbl.Data.Name)
		bw.WriteString("time\tvalue\n") //nolint:errcheck // error surfaces on Flush
		for _, s := range tbl.Data.Samples {
			bw.WriteString(formatFloat(s.T))
			bw.WriteByte('\t')
			bw.WriteString(formatFloat(s.V))
			bw.WriteByte('\n')
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing tsv: %w", err)
	}
	return nil
}

// WriteXLSX writes one worksheet per table, named "kind-id", with a header
// row of "time (s)" and the device name.
func WriteXLSX(w io.Writer, tables []Table) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory file

	for i, tbl := range tables {
		sheet := SheetName(tbl.Device)
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
				return fmt.Errorf("naming sheet %s: %w", sheet, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("adding sheet %s: %w", sheet, err)
		}

		sw, err := f.NewStreamWriter(sheet)
		if err != nil {
			return fmt.Errorf("opening sheet %s: %w", sheet, err)
		}
		if err := sw.SetRow("A1", []any{"time (s)", tbl.Data.Name}); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
		for row, s := range tbl.Data.Samples {
			cell, err := excelize.CoordinatesToCellName(1, row+2)
			if err != nil {
				return err
			}
			if err := sw.SetRow(cell, []any{s.T, s.V}); err != nil {
				return fmt.Errorf("writing row %d: %w", row+2, err)
			}
		}
		if err := sw.Flush(); err != nil {
			return fmt.Errorf("flushing sheet %s: %w", sheet, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

// SheetName is the worksheet name for ref, e.g. "sensor-3".
func SheetName(ref device.Ref) string {
	return fmt.Sprintf("%s-%d", ref.Kind, ref.ID)
}

// Filename suggests a download name, e.g. "rigdash-sensor-3.tsv".
func Filename(refs []device.Ref, f Format) string {
	if len(refs) == 1 {
		return fmt.Sprintf("rigdash-%s.%s", SheetName(refs[0]), f)
	}
	return fmt.Sprintf("rigdash-%d-series.%s", len(refs), f)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
