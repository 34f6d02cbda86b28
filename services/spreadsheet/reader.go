// Package spreadsheet reads attendance sheets (xlsx or csv) into attendance rows.
package spreadsheet

import (
	"encoding/csv"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

// column headers, matched case-insensitively
const (
	colSubject  = "subject"
	colDate     = "date"
	colTimeSlot = "time slot"
	colStatus   = "status"
)

// serial day numbers beyond this are not Excel dates (9999-12-31)
const maxExcelSerial = 2958465

var ErrUnsupportedFormat = errors.New("unsupported file format, expected .xlsx or .csv")

// MissingColumnsError is returned when the header row lacks required columns.
type MissingColumnsError struct {
	Columns []string
}

func (err *MissingColumnsError) Error() string {
	return "missing columns: " + strings.Join(err.Columns, ", ")
}

// Supported reports whether `filename` has a readable extension.
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".csv":
		return true
	}
	return false
}

// ReadRows reads the first sheet of the xlsx or csv file `r`, picking the format from `filename`.
// The first row is the header; blank rows are ignored.
// The 1-based sheet line of each row is returned alongside it.
func ReadRows(r io.Reader, filename string) ([]attendance.Row, []int, error) {
	var (
		records [][]string
		lines   []int
		err     error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		records, lines, err = readXLSX(r)
	case ".csv":
		records, lines, err = readCSV(r)
	default:
		return nil, nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, &MissingColumnsError{Columns: []string{"Subject", "Date", "Time Slot", "Status"}}
	}
	return toRows(records, lines)
}

func readXLSX(r io.Reader) ([][]string, []int, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, nil
	}
	// empty rows between filled ones are kept, so the index gives the line
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "reading sheet %q", sheets[0])
	}
	lines := make([]int, len(rows))
	for i := range rows {
		lines[i] = i + 1
	}
	return rows, lines, nil
}

func readCSV(r io.Reader) ([][]string, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		records [][]string
		lines   []int
	)
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			return records, lines, nil
		}
		if err != nil {
			return nil, nil, errors.Wrap(err, "reading csv")
		}
		// blank lines are skipped by the reader
		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lines = append(lines, line)
	}
}

func toRows(records [][]string, lines []int) ([]attendance.Row, []int, error) {
	index := make(map[string]int, 4)
	for i, name := range records[0] {
		name = core.CleanString(strings.TrimPrefix(name, "\ufeff"), true /* lower */)
		if _, ok := index[name]; !ok {
			index[name] = i
		}
	}
	var missing []string
	for _, col := range []struct{ key, title string }{
		{colSubject, "Subject"}, {colDate, "Date"}, {colTimeSlot, "Time Slot"}, {colStatus, "Status"},
	} {
		if _, ok := index[col.key]; !ok {
			missing = append(missing, col.title)
		}
	}
	if len(missing) > 0 {
		return nil, nil, &MissingColumnsError{Columns: missing}
	}

	rows := make([]attendance.Row, 0, len(records)-1)
	rowLines := make([]int, 0, len(records)-1)
	for i, rec := range records[1:] {
		cell := func(col string) string {
			if i := index[col]; i < len(rec) {
				return strings.TrimSpace(rec[i])
			}
			return ""
		}
		row := attendance.Row{
			Subject:  cell(colSubject),
			Date:     serialDate(cell(colDate)),
			TimeSlot: serialTime(cell(colTimeSlot)),
			Status:   cell(colStatus),
		}
		if row == (attendance.Row{}) {
			continue
		}
		rows = append(rows, row)
		rowLines = append(rowLines, lines[i+1])
	}
	return rows, rowLines, nil
}

// serialDate converts an Excel serial date to YYYY-MM-DD, leaving other values as is.
func serialDate(s string) string {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n < 1 || n > maxExcelSerial {
		return s
	}
	t, err := excelize.ExcelDateToTime(n, false)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

// serialTime converts an Excel time of day (a fraction of a day) to HH:MM, leaving other values as is.
func serialTime(s string) string {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || n <= 0 || n >= 1 || !strings.Contains(s, ".") {
		return s
	}
	t, err := excelize.ExcelDateToTime(n, false)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}
