package xlsx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

const (
	// SharedStringsPath is the location of the shared-string table inside the container.
	SharedStringsPath = "xl/sharedStrings.xml"
	// DefaultSheetPath is the worksheet holding the matched results in the export.
	DefaultSheetPath = "xl/worksheets/sheet2.xml"

	worksheetDir = "xl/worksheets/"
)

// MaxEntrySize caps the uncompressed size of a single XML entry.
var MaxEntrySize uint64 = 256 << 20

var (
	ErrSheetNotFound         = errors.New("worksheet not found in workbook")
	ErrSharedStringsNotFound = errors.New("shared string table not found in workbook")
)

// CellKind tells where a cell's text came from.
type CellKind int

const (
	CellRaw CellKind = iota
	CellShared
	CellInline
)

func (k CellKind) String() string {
	switch k {
	case CellShared:
		return "shared"
	case CellInline:
		return "inline"
	default:
		return "raw"
	}
}

// CellValue is the decoded, trimmed scalar of one cell.
type CellValue struct {
	Kind CellKind
	Text string
}

// Row is one worksheet row keyed by column letters ("A", "D", "AB").
type Row struct {
	Index int
	Cells map[string]CellValue
}

// Get returns the text of the cell in column col or "" if the row has none.
func (r Row) Get(col string) string {
	return r.Cells[col].Text
}

// Sheet is a decoded worksheet.
type Sheet struct {
	Path string
	Rows []Row
}

// SharedStrings is the ordered shared-string table of a workbook.
type SharedStrings []string

// Lookup resolves a shared-string index. Out of range indices resolve to "".
func (s SharedStrings) Lookup(i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	return s[i]
}

// DecodeSheet decodes the worksheet at sheetPath from the raw bytes of a
// zip-packaged workbook.
//
// Individual cells never fail: a missing or malformed value yields "".
// The call fails when the container cannot be opened, when the worksheet or
// the shared-string table is absent, or when an XML stream is broken.
func DecodeSheet(content []byte, sheetPath string) (*Sheet, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	return decode(zr, sheetPath)
}

// DecodeFile is DecodeSheet for a workbook on disk. The container is closed
// before returning, including when decoding fails halfway.
func DecodeFile(path string, sheetPath string) (*Sheet, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook %s: %w", path, err)
	}
	defer rc.Close()

	return decode(&rc.Reader, sheetPath)
}

// ListSheets returns the worksheet entries of a workbook in name order.
func ListSheets(content []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}

	var sheets []string
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, worksheetDir) && strings.HasSuffix(f.Name, ".xml") &&
			!strings.Contains(strings.TrimPrefix(f.Name, worksheetDir), "/") {
			sheets = append(sheets, f.Name)
		}
	}
	sort.Strings(sheets)
	return sheets, nil
}

func decode(zr *zip.Reader, sheetPath string) (*Sheet, error) {
	sstFile := findEntry(zr, SharedStringsPath)
	if sstFile == nil {
		return nil, ErrSharedStringsNotFound
	}
	sheetFile := findEntry(zr, sheetPath)
	if sheetFile == nil {
		return nil, fmt.Errorf("%w: %s", ErrSheetNotFound, sheetPath)
	}

	var strs SharedStrings
	err := withEntry(sstFile, func(r io.Reader) error {
		var err error
		strs, err = parseSharedStrings(r)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", SharedStringsPath, err)
	}

	var rows []Row
	err = withEntry(sheetFile, func(r io.Reader) error {
		var err error
		rows, err = parseRows(r, strs)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", sheetPath, err)
	}

	return &Sheet{Path: sheetPath, Rows: rows}, nil
}

func findEntry(zr *zip.Reader, name string) *zip.File {
	name = strings.TrimPrefix(name, "/")
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func withEntry(f *zip.File, fn func(io.Reader) error) error {
	if f.UncompressedSize64 > MaxEntrySize {
		return fmt.Errorf("%s too large: %d bytes", f.Name, f.UncompressedSize64)
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	return fn(io.LimitReader(rc, int64(MaxEntrySize)))
}

// parseSharedStrings collects one entry per <si>. Rich text entries
// concatenate their runs; phonetic hints (<rPh>) are not part of the value.
func parseSharedStrings(r io.Reader) (SharedStrings, error) {
	dec := xml.NewDecoder(r)

	var (
		strs     SharedStrings
		sb       strings.Builder
		inItem   bool
		inText   bool
		phonetic int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "si":
				inItem = true
				sb.Reset()
			case "rPh":
				phonetic++
			case "t":
				inText = inItem && phonetic == 0
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "si":
				strs = append(strs, sb.String())
				inItem = false
			case "rPh":
				if phonetic > 0 {
					phonetic--
				}
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strs, nil
}

type cellState struct {
	ref     string
	typ     string
	value   strings.Builder
	inline  strings.Builder
	inValue bool
	inIS    bool
	inText  bool
	rph     int
}

func parseRows(r io.Reader, strs SharedStrings) ([]Row, error) {
	dec := xml.NewDecoder(r)

	var (
		rows    []Row
		row     *Row
		cell    *cellState
		lastRow int
		lastCol int
	)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "row":
				idx, err := strconv.Atoi(attr(t, "r"))
				if err != nil || idx <= 0 {
					idx = lastRow + 1
				}
				lastRow = idx
				lastCol = 0
				row = &Row{Index: idx, Cells: make(map[string]CellValue)}
			case "c":
				cell = &cellState{ref: attr(t, "r"), typ: attr(t, "t")}
			case "v":
				if cell != nil {
					cell.inValue = true
				}
			case "is":
				if cell != nil {
					cell.inIS = true
				}
			case "rPh":
				if cell != nil {
					cell.rph++
				}
			case "t":
				if cell != nil && cell.inIS && cell.rph == 0 {
					cell.inText = true
				}
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "row":
				if row != nil {
					rows = append(rows, *row)
				}
				row = nil
			case "c":
				if cell != nil && row != nil {
					col := ColumnOf(cell.ref)
					if col == "" {
						col = ColumnName(lastCol + 1)
					}
					lastCol = ColumnIndex(col)
					row.Cells[col] = resolve(cell, strs)
				}
				cell = nil
			case "v":
				if cell != nil {
					cell.inValue = false
				}
			case "is":
				if cell != nil {
					cell.inIS = false
				}
			case "rPh":
				if cell != nil && cell.rph > 0 {
					cell.rph--
				}
			case "t":
				if cell != nil {
					cell.inText = false
				}
			}

		case xml.CharData:
			if cell == nil {
				continue
			}
			if cell.inValue {
				cell.value.Write(t)
			} else if cell.inText {
				cell.inline.Write(t)
			}
		}
	}

	return rows, nil
}

func resolve(c *cellState, strs SharedStrings) CellValue {
	switch c.typ {
	case "inlineStr":
		return CellValue{Kind: CellInline, Text: strings.TrimSpace(c.inline.String())}
	case "s":
		idx, err := strconv.Atoi(strings.TrimSpace(c.value.String()))
		if err != nil {
			return CellValue{Kind: CellShared}
		}
		return CellValue{Kind: CellShared, Text: strings.TrimSpace(strs.Lookup(idx))}
	default:
		return CellValue{Kind: CellRaw, Text: strings.TrimSpace(c.value.String())}
	}
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

// ColumnOf returns the leading alphabetic prefix of a cell reference,
// upper-cased: "AB12" -> "AB".
func ColumnOf(ref string) string {
	end := 0
	for end < len(ref) {
		ch := ref[end]
		if (ch < 'A' || ch > 'Z') && (ch < 'a' || ch > 'z') {
			break
		}
		end++
	}
	return strings.ToUpper(ref[:end])
}

// ColumnIndex converts column letters to a 1-based index ("A" = 1, "AA" = 27).
// It returns 0 for an empty or non-alphabetic column.
func ColumnIndex(col string) int {
	n := 0
	for i := 0; i < len(col); i++ {
		ch := col[i]
		if ch >= 'a' && ch <= 'z' {
			ch -= 'a' - 'A'
		}
		if ch < 'A' || ch > 'Z' {
			return 0
		}
		n = n*26 + int(ch-'A'+1)
	}
	return n
}

// ColumnName is the inverse of ColumnIndex.
func ColumnName(idx int) string {
	if idx <= 0 {
		return ""
	}
	var buf []byte
	for idx > 0 {
		idx--
		buf = append([]byte{byte('A' + idx%26)}, buf...)
		idx /= 26
	}
	return string(buf)
}
