package listing

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	return &csvStreamer{buf: buf, csv: csv.NewWriter(buf), flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// WriteCSV writes a header row and one row per item. Values containing
// commas or quotes are quoted.
func (g Grid[T]) WriteCSV(w io.Writer, rows []T) error {
	streamer := newCSVStreamer(w)
	header := make([]string, len(g.Columns))
	for i, col := range g.Columns {
		header[i] = col.Header
	}
	if err := streamer.writeRow(header); err != nil {
		return err
	}
	for _, cells := range g.Cells(rows) {
		if err := streamer.writeRow(cells); err != nil {
			return err
		}
	}
	return streamer.Flush()
}

// Filename is the date stamped download name, e.g. srn_2024-05-01.csv.
func (g Grid[T]) Filename(now time.Time) string {
	return g.Entity + "_" + now.Format("2006-01-02") + ".csv"
}

// ServeCSV filters rows with q.Search and q.Sort and streams them as a CSV
// download.
func (g Grid[T]) ServeCSV(w http.ResponseWriter, logger *slog.Logger, rows []T, q Query, now time.Time) {
	filtered := append([]T(nil), g.Filter(rows, q.Search)...)
	g.Sort(filtered, q.Sort, q.Desc)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(g.Filename(now)))
	w.WriteHeader(http.StatusOK)
	if err := g.WriteCSV(w, filtered); err != nil && logger != nil {
		logger.Error("write csv", slog.String("entity", g.Entity), slog.Any("error", err))
	}
}
