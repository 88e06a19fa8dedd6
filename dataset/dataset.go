// Package dataset loads question/answer datasets for API-recommendation
// research (BIKER, APIBENCH-Q and compatible CSV exports). Each record pairs
// a free-text question title with the gold set of API identifiers that
// answer it.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/doujins-org/apireckit/apiname"
)

// Record is one QA instance.
type Record struct {
	Idx    int
	Title  string
	Answer []apiname.API
}

// Dataset is an immutable, ordered collection of records.
type Dataset struct {
	name    string
	records []Record
}

// Load reads a CSV file with an `idx,title,answer` header. The answer column
// holds comma-joined API identifiers (quoted by the CSV layer).
func Load(name, path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", name, err)
	}
	defer f.Close()

	ds, err := Read(name, f)
	if err != nil {
		return nil, fmt.Errorf("dataset %s (%s): %w", name, path, err)
	}
	return ds, nil
}

// Read parses CSV content from r. Split out from Load so tests and non-file
// sources can feed records directly.
func Read(name string, r io.Reader) (*Dataset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("dataset name is required")
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) != 3 || header[0] != "idx" || header[1] != "title" || header[2] != "answer" {
		return nil, fmt.Errorf("unexpected header %v, want [idx title answer]", header)
	}

	var records []Record
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid idx %q", row, rec[0])
		}
		title := strings.TrimSpace(rec[1])
		if title == "" {
			return nil, fmt.Errorf("row %d: empty title", row)
		}
		answer, err := apiname.ListFromString(rec[2])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		records = append(records, Record{Idx: idx, Title: title, Answer: answer})
	}

	return &Dataset{name: name, records: records}, nil
}

// FromRecords builds an in-memory dataset, e.g. for custom experiment data.
func FromRecords(name string, records []Record) (*Dataset, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("dataset name is required")
	}
	out := make([]Record, len(records))
	copy(out, records)
	return &Dataset{name: name, records: out}, nil
}

// Name returns the dataset identifier used in storage keys and logs.
func (d *Dataset) Name() string { return d.name }

// Len returns the number of records.
func (d *Dataset) Len() int { return len(d.records) }

// At returns the i-th record in file order.
func (d *Dataset) At(i int) (Record, error) {
	if i < 0 || i >= len(d.records) {
		return Record{}, fmt.Errorf("record index %d out of range [0, %d)", i, len(d.records))
	}
	return d.records[i], nil
}

// Records returns a copy of all records in file order.
func (d *Dataset) Records() []Record {
	out := make([]Record, len(d.records))
	copy(out, d.records)
	return out
}

// Titles returns all question titles in file order.
func (d *Dataset) Titles() []string {
	out := make([]string, len(d.records))
	for i, r := range d.records {
		out[i] = r.Title
	}
	return out
}

// GoldAnswers returns the reference identifier lists in the shape the
// metrics engine consumes: one []string per record, canonical dotted form.
func (d *Dataset) GoldAnswers() [][]string {
	out := make([][]string, len(d.records))
	for i, r := range d.records {
		out[i] = apiname.Strings(r.Answer)
	}
	return out
}

// ByIdx returns the record with the given idx column value, or false when no
// record carries it. Idx values come from the source file and need not be
// dense or sorted.
func (d *Dataset) ByIdx(idx int) (Record, bool) {
	for _, r := range d.records {
		if r.Idx == idx {
			return r, true
		}
	}
	return Record{}, false
}
