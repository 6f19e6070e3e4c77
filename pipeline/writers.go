package pipeline

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// column is one exported field of a record, shared by every tabular writer.
type column struct {
	name  string
	title string
	value func(models.BookRecord) string
}

var columns = []column{
	{"title", "Title", func(r models.BookRecord) string { return r.Title }},
	{"author", "Author", func(r models.BookRecord) string { return r.Author }},
	{"publisher", "Publisher", func(r models.BookRecord) string { return r.Publisher }},
	{"call_number", "Call No.", func(r models.BookRecord) string { return r.CallNumber }},
	{"availability", "Availability", func(r models.BookRecord) string { return r.Availability }},
	{"cover_url", "Cover", func(r models.BookRecord) string { return r.CoverURL }},
	{"description", "Description", func(r models.BookRecord) string { return r.Description }},
	{"volumes", "Volumes", func(r models.BookRecord) string { return strconv.Itoa(r.Volumes) }},
}

func csvHeader() []string {
	header := make([]string, len(columns))
	for i, c := range columns {
		header[i] = c.name
	}
	return header
}

func csvRow(r models.BookRecord) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = c.value(r)
	}
	return row
}

// fileSink owns an output file for the file-backed writers.
type fileSink struct {
	kind string
	file *os.File
}

func openSink(kind, filename string) (fileSink, error) {
	if err := ensureDir(filename); err != nil {
		return fileSink{}, err
	}
	f, err := os.Create(filename)
	if err != nil {
		return fileSink{}, fmt.Errorf("create %s file: %w", kind, err)
	}
	return fileSink{kind: kind, file: f}, nil
}

// Validate ensures the file has content.
func (s fileSink) Validate() error {
	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s file: %w", s.kind, err)
	}
	if info.Size() <= 0 {
		return fmt.Errorf("%s file is empty", s.kind)
	}
	return nil
}

// CSVWriter writes records to CSV, one row per work.
type CSVWriter struct {
	fileSink
	writer *csv.Writer
	mu     sync.Mutex
}

// NewCSVWriter creates filename and writes the header row.
func NewCSVWriter(filename string) (*CSVWriter, error) {
	sink, err := openSink("csv", filename)
	if err != nil {
		return nil, err
	}

	cw := &CSVWriter{fileSink: sink, writer: csv.NewWriter(sink.file)}
	if err := cw.writeRows(csvHeader()); err != nil {
		sink.file.Close()
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	return cw, nil
}

// Write appends records to the CSV output.
func (cw *CSVWriter) Write(records []models.BookRecord) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, csvRow(r))
	}
	if err := cw.writeRows(rows...); err != nil {
		return fmt.Errorf("write csv records: %w", err)
	}
	return nil
}

func (cw *CSVWriter) writeRows(rows ...[]string) error {
	for _, row := range rows {
		if err := cw.writer.Write(row); err != nil {
			return err
		}
	}
	cw.writer.Flush()
	return cw.writer.Error()
}

// Close flushes and closes the file handle.
func (cw *CSVWriter) Close() error {
	cw.mu.Lock()
	defer cw.mu.Unlock()

	cw.writer.Flush()
	if err := cw.writer.Error(); err != nil {
		return fmt.Errorf("flush csv writer: %w", err)
	}
	return cw.file.Close()
}

// JSONWriter writes newline-delimited JSON records.
type JSONWriter struct {
	fileSink
	buf     *bufio.Writer
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewJSONWriter creates filename for JSONL output.
func NewJSONWriter(filename string) (*JSONWriter, error) {
	sink, err := openSink("json", filename)
	if err != nil {
		return nil, err
	}

	buf := bufio.NewWriter(sink.file)
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	return &JSONWriter{fileSink: sink, buf: buf, encoder: encoder}, nil
}

// Write appends one line per record.
func (jw *JSONWriter) Write(records []models.BookRecord) error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	for _, r := range records {
		if err := jw.encoder.Encode(r); err != nil {
			return fmt.Errorf("encode json record: %w", err)
		}
	}
	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return nil
}

// Close flushes buffers and closes the underlying file.
func (jw *JSONWriter) Close() error {
	jw.mu.Lock()
	defer jw.mu.Unlock()

	if err := jw.buf.Flush(); err != nil {
		return fmt.Errorf("flush json writer: %w", err)
	}
	return jw.file.Close()
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
