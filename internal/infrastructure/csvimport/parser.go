// Package csvimport reads operator-supplied CSV files row by row and
// validates them against per-column rules.
package csvimport

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// Parser reads a CSV file with a header row. Headers are matched
// case-insensitively and ignore surrounding spaces.
type Parser struct {
	delimiter rune
	maxRows   int
	headerMap map[string]int
	headers   []string
	line      int
	rows      int
	reader    *csv.Reader
}

// ParserOption configures a Parser
type ParserOption func(*Parser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *Parser) {
		p.delimiter = d
	}
}

// WithMaxRows caps the number of data rows; ReadRow returns ErrTooManyRows
// past the cap. Zero means no cap.
func WithMaxRows(n int) ParserOption {
	return func(p *Parser) {
		p.maxRows = n
	}
}

// NewParser wraps r, stripping a UTF-8 byte order mark and rejecting input
// that is empty or not UTF-8
func NewParser(r io.Reader, opts ...ParserOption) (*Parser, error) {
	p := &Parser{
		delimiter: ',',
		headerMap: make(map[string]int),
	}
	for _, opt := range opts {
		opt(p)
	}

	buf := bufio.NewReader(r)
	bom, err := buf.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = buf.Discard(3)
	}
	if err := checkUTF8(buf); err != nil {
		return nil, err
	}

	p.reader = csv.NewReader(buf)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// checkUTF8 inspects the first 4 KiB. A rune split at the boundary is not
// an encoding error.
func checkUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	head, err := r.Peek(checkSize)
	if err != nil && err != io.EOF && !errors.Is(err, bufio.ErrBufferFull) {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}
	if len(head) == 0 {
		return ErrEmptyFile
	}
	if len(head) == checkSize {
		// drop a trailing partial rune
		for i := 0; i < utf8.UTFMax-1 && !utf8.Valid(head); i++ {
			head = head[:len(head)-1]
		}
	}
	if !utf8.Valid(head) {
		return ErrInvalidEncoding
	}
	return nil
}

// ParseHeader reads the header row
func (p *Parser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, 0, len(record))
	for i, h := range record {
		name := normalizeHeader(h)
		if name == "" {
			continue
		}
		if _, dup := p.headerMap[name]; dup {
			return fmt.Errorf("%w: %q appears twice", ErrDuplicateHeader, name)
		}
		p.headers = append(p.headers, name)
		p.headerMap[name] = i
	}
	if len(p.headers) == 0 {
		return ErrMissingHeader
	}

	p.line = 1
	return nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}

// Headers returns the normalized header names in file order
func (p *Parser) Headers() []string {
	return p.headers
}

// HasHeader reports whether the file has a column named name
func (p *Parser) HasHeader(name string) bool {
	_, ok := p.headerMap[normalizeHeader(name)]
	return ok
}

// MissingHeaders returns the names in required that the file lacks
func (p *Parser) MissingHeaders(required ...string) []string {
	var missing []string
	for _, h := range required {
		if !p.HasHeader(h) {
			missing = append(missing, h)
		}
	}
	return missing
}

// Row is one data row keyed by normalized header
type Row struct {
	Line int
	Data map[string]string
}

// Get returns the trimmed value of a column, or "" when absent
func (r *Row) Get(column string) string {
	return r.Data[normalizeHeader(column)]
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow returns the next row, or io.EOF after the last one. Line numbers
// count the header as line 1.
func (p *Parser) ReadRow() (*Row, error) {
	if p.headers == nil {
		return nil, ErrMissingHeader
	}
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedRow, p.line, err)
	}
	if p.maxRows > 0 && p.rows >= p.maxRows {
		return nil, fmt.Errorf("%w: limit is %d", ErrTooManyRows, p.maxRows)
	}
	p.rows++

	row := &Row{Line: p.line, Data: make(map[string]string, len(p.headers))}
	for name, idx := range p.headerMap {
		if idx < len(record) {
			row.Data[name] = strings.TrimSpace(record[idx])
		} else {
			row.Data[name] = ""
		}
	}
	return row, nil
}

// ReadAll returns the remaining non-empty rows
func (p *Parser) ReadAll() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}
