package utils

import (
	"archive/zip"
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Dataset is an ordered tabular payload with named columns, produced from an
// uploaded CSV or XLSX file. The header row is consumed into Columns; Rows
// holds only data rows.
type Dataset struct {
	Columns []string
	Rows    [][]string

	headerIdx map[string]int
}

// NewDataset builds a dataset from raw rows, treating the first row as the
// header. Header names are lowercased and trimmed.
func NewDataset(raw [][]string) (*Dataset, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("file has no rows")
	}

	headerIdx := make(map[string]int)
	columns := make([]string, 0, len(raw[0]))
	for idx, h := range raw[0] {
		key := strings.TrimSpace(strings.ToLower(h))
		if key == "" {
			continue
		}
		if _, dup := headerIdx[key]; !dup {
			headerIdx[key] = idx
			columns = append(columns, key)
		}
	}

	return &Dataset{
		Columns:   columns,
		Rows:      raw[1:],
		headerIdx: headerIdx,
	}, nil
}

// MissingColumns returns the required column names absent from the header.
func (d *Dataset) MissingColumns(required ...string) []string {
	var missing []string
	for _, col := range required {
		if _, ok := d.headerIdx[col]; !ok {
			missing = append(missing, col)
		}
	}
	return missing
}

// Row maps the i-th data row into column name → raw cell value.
func (d *Dataset) Row(i int) map[string]string {
	values := make(map[string]string, len(d.headerIdx))
	row := d.Rows[i]
	for key, idx := range d.headerIdx {
		if idx < len(row) {
			values[key] = row[idx]
		}
	}
	return values
}

// Len returns the number of data rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// ReadDatasetFile parses a stored upload into a Dataset, choosing the parser
// by file extension (.csv or .xlsx/.xls).
func ReadDatasetFile(path string) (*Dataset, error) {
	var (
		raw [][]string
		err error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		raw, err = readCSVRows(path)
	case ".xlsx", ".xls":
		raw, err = ReadXLSXRows(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	return NewDataset(raw)
}

func readCSVRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // ragged rows are tolerated, validation happens per cell
	r.TrimLeadingSpace = true

	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("invalid CSV: %w", err)
	}
	return rows, nil
}

// ReadXLSXRows extracts all rows from the first worksheet of an XLSX file
// without third-party dependencies.
func ReadXLSXRows(path string) ([][]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("invalid XLSX: %w", err)
	}
	defer r.Close()

	var sheetXML, sharedXML io.ReadCloser
	for _, f := range r.File {
		switch f.Name {
		case "xl/worksheets/sheet1.xml":
			sheetXML, _ = f.Open()
		case "xl/sharedStrings.xml":
			sharedXML, _ = f.Open()
		}
	}

	if sheetXML == nil {
		return nil, fmt.Errorf("worksheet not found")
	}
	defer sheetXML.Close()
	defer func() {
		if sharedXML != nil {
			sharedXML.Close()
		}
	}()

	sharedStrings, _ := parseSharedStrings(sharedXML)
	return parseSheet(sheetXML, sharedStrings)
}

func parseSharedStrings(r io.Reader) ([]string, error) {
	if r == nil {
		return nil, nil
	}
	type t struct {
		XMLName xml.Name `xml:"sst"`
		Items   []struct {
			T string `xml:"t"`
		} `xml:"si"`
	}
	var data t
	if err := xml.NewDecoder(r).Decode(&data); err != nil {
		return nil, err
	}
	strs := make([]string, 0, len(data.Items))
	for _, item := range data.Items {
		strs = append(strs, item.T)
	}
	return strs, nil
}

func parseSheet(r io.Reader, shared []string) ([][]string, error) {
	decoder := xml.NewDecoder(r)
	rows := [][]string{}
	var currentRow []string
	var lastCol int

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch se := tok.(type) {
		case xml.StartElement:
			if se.Name.Local == "row" {
				currentRow = []string{}
				lastCol = 0
			}
			if se.Name.Local == "c" {
				var cell struct {
					R  string `xml:"r,attr"`
					T  string `xml:"t,attr"`
					V  string `xml:"v"`
					IS struct {
						T string `xml:"t"`
					} `xml:"is"`
				}
				if err := decoder.DecodeElement(&cell, &se); err != nil {
					return nil, err
				}

				colIdx := columnIndex(cell.R)
				for len(currentRow) < colIdx-1 {
					currentRow = append(currentRow, "")
				}

				value := cell.V
				if cell.T == "s" { // shared string
					if idx, err := strconv.Atoi(strings.TrimSpace(cell.V)); err == nil && idx < len(shared) {
						value = shared[idx]
					}
				} else if cell.T == "inlineStr" {
					value = cell.IS.T
				}

				if len(currentRow) < colIdx {
					currentRow = append(currentRow, value)
				} else {
					currentRow[colIdx-1] = value
				}
				lastCol = colIdx
			}
		case xml.EndElement:
			if se.Name.Local == "row" {
				// Ensure row length aligns
				for len(currentRow) < lastCol {
					currentRow = append(currentRow, "")
				}
				rows = append(rows, currentRow)
			}
		}
	}

	return rows, nil
}

// columnIndex converts a cell reference like "BC12" to a 1-based column
// index. References without letters map to column 1.
func columnIndex(ref string) int {
	col := 0
	for _, ch := range ref {
		if ch >= 'A' && ch <= 'Z' {
			col = col*26 + int(ch-'A') + 1
		} else if ch >= 'a' && ch <= 'z' {
			col = col*26 + int(ch-'a') + 1
		} else {
			break
		}
	}
	if col == 0 {
		return 1
	}
	return col
}

// columnName converts a 1-based column index to its letter reference.
func columnName(idx int) string {
	name := ""
	for idx > 0 {
		idx--
		name = string(rune('A'+idx%26)) + name
		idx /= 26
	}
	return name
}

// WriteXLSX writes rows as a single-worksheet XLSX workbook using inline
// strings, the inverse of ReadXLSXRows. Used for template downloads.
func WriteXLSX(w io.Writer, sheetName string, rows [][]string) error {
	zw := zip.NewWriter(w)

	parts := []struct {
		name    string
		content string
	}{
		{
			"[Content_Types].xml",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
				`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
				`<Default Extension="xml" ContentType="application/xml"/>` +
				`<Override PartName="/xl/workbook.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.sheet.main+xml"/>` +
				`<Override PartName="/xl/worksheets/sheet1.xml" ContentType="application/vnd.openxmlformats-officedocument.spreadsheetml.worksheet+xml"/>` +
				`</Types>`,
		},
		{
			"_rels/.rels",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
				`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="xl/workbook.xml"/>` +
				`</Relationships>`,
		},
		{
			"xl/workbook.xml",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
				`<sheets><sheet name="` + xmlEscape(sheetName) + `" sheetId="1" r:id="rId1"/></sheets>` +
				`</workbook>`,
		},
		{
			"xl/_rels/workbook.xml.rels",
			`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
				`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
				`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/worksheet" Target="worksheets/sheet1.xml"/>` +
				`</Relationships>`,
		},
		{
			"xl/worksheets/sheet1.xml",
			buildSheetXML(rows),
		},
	}

	for _, part := range parts {
		f, err := zw.Create(part.name)
		if err != nil {
			return err
		}
		if _, err := f.Write([]byte(part.content)); err != nil {
			return err
		}
	}

	return zw.Close()
}

func buildSheetXML(rows [][]string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	b.WriteString(`<worksheet xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><sheetData>`)
	for ri, row := range rows {
		fmt.Fprintf(&b, `<row r="%d">`, ri+1)
		for ci, val := range row {
			fmt.Fprintf(&b, `<c r="%s%d" t="inlineStr"><is><t>%s</t></is></c>`,
				columnName(ci+1), ri+1, xmlEscape(val))
		}
		b.WriteString(`</row>`)
	}
	b.WriteString(`</sheetData></worksheet>`)
	return b.String()
}

func xmlEscape(s string) string {
	var b strings.Builder
	if err := xml.EscapeText(&b, []byte(s)); err != nil {
		return s
	}
	return b.String()
}
