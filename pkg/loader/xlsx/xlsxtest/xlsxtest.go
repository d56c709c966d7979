// Package xlsxtest builds small in-memory workbooks for tests.
package xlsxtest

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/matchgraph/pkg/loader/xlsx"
)

const ns = `xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"`

// Build zips the given entries into a container.
func Build(t testing.TB, files map[string]string) []byte {
	t.Helper()

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Workbook builds a workbook whose worksheet at sheetPath holds rows, column
// A first. Numeric cells are stored as raw values, all other non-empty cells
// go through the shared-string table, empty cells are omitted.
func Workbook(t testing.TB, sheetPath string, rows [][]string) []byte {
	t.Helper()

	var (
		strs  []string
		index = map[string]int{}
		sheet strings.Builder
	)

	sheet.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	sheet.WriteString(`<worksheet ` + ns + `><sheetData>`)
	for r, cells := range rows {
		fmt.Fprintf(&sheet, `<row r="%d">`, r+1)
		for c, text := range cells {
			if text == "" {
				continue
			}
			ref := xlsx.ColumnName(c+1) + strconv.Itoa(r+1)
			if _, err := strconv.ParseFloat(text, 64); err == nil {
				fmt.Fprintf(&sheet, `<c r="%s"><v>%s</v></c>`, ref, escape(text))
				continue
			}
			i, ok := index[text]
			if !ok {
				i = len(strs)
				index[text] = i
				strs = append(strs, text)
			}
			fmt.Fprintf(&sheet, `<c r="%s" t="s"><v>%d</v></c>`, ref, i)
		}
		sheet.WriteString(`</row>`)
	}
	sheet.WriteString(`</sheetData></worksheet>`)

	return Build(t, map[string]string{
		xlsx.SharedStringsPath: SharedStrings(strs...),
		sheetPath:              sheet.String(),
	})
}

// SharedStrings renders a plain shared-string table.
func SharedStrings(values ...string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	fmt.Fprintf(&sb, `<sst %s count="%d" uniqueCount="%d">`, ns, len(values), len(values))
	for _, v := range values {
		sb.WriteString(`<si><t xml:space="preserve">` + escape(v) + `</t></si>`)
	}
	sb.WriteString(`</sst>`)
	return sb.String()
}

// Worksheet wraps raw <row> markup into a worksheet document.
func Worksheet(rowsXML string) string {
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?><worksheet ` + ns + `><sheetData>` +
		rowsXML + `</sheetData></worksheet>`
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
