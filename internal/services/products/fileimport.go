package products

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	ErrUnsupportedFormat = errors.New("only CSV and XLSX files are supported")
	ErrEmptyFile         = errors.New("file must have a header row and at least one data row")
)

// columnAliases maps accepted header names to candidate fields.
var columnAliases = map[string]string{
	"asin":          "asin",
	"post_title":    "post_title",
	"title":         "post_title",
	"post_name":     "post_name",
	"slug":          "post_name",
	"post_content":  "post_content",
	"content":       "post_content",
	"description":   "post_content",
	"image_primary": "image_primary",
	"image":         "image_primary",
	"image_url":     "image_primary",
	"regular_price": "regular_price",
	"price":         "regular_price",
	"sale_price":    "sale_price",
	"product_url":   "product_url",
	"url":           "product_url",
}

// ParseImportFile reads candidates from a CSV or XLSX upload. The format is
// chosen by file extension; the first row holds column names.
func ParseImportFile(filename string, r io.Reader) (Candidates, error) {
	var rows [][]string
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		rows, err = readCSV(r)
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, ErrEmptyFile
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		h = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(h)), " *")
		headers[i] = columnAliases[h]
	}

	candidates := make(Candidates, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if blank(row) {
			continue
		}
		var c Candidate
		for i, value := range row {
			if i >= len(headers) || headers[i] == "" {
				continue
			}
			setField(&c, headers[i], strings.TrimSpace(value))
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func setField(c *Candidate, field, value string) {
	v := NewFlexString(value)
	switch field {
	case "asin":
		c.ASIN = v
	case "post_title":
		c.PostTitle = v
	case "post_name":
		c.PostName = v
	case "post_content":
		c.PostContent = v
	case "image_primary":
		c.ImagePrimary = v
	case "regular_price":
		c.RegularPrice = v
	case "sale_price":
		c.SalePrice = v
	case "product_url":
		c.ProductURL = v
	}
}

func blank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV file: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets found in Excel file")
	}

	sheetName := sheets[0]
	for _, name := range sheets {
		if strings.EqualFold(name, "Products") {
			sheetName = name
			break
		}
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet: %w", err)
	}
	return rows, nil
}
