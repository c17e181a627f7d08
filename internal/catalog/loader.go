package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fikse/fikse-agent/backend/internal/models"
	"github.com/fikse/fikse-agent/backend/pkg/utils"
)

// Column headers of the flat catalog CSV
const (
	colRepairer    = "Type of Repairer"
	colCategory    = "Type of category"
	colGarment     = "Type of garment in category"
	colService     = "Service"
	colDescription = "Description"
	colPrice       = "Price"
	colHours       = "Estimated time in hours"
)

// Catalog is the immutable in-memory service catalog, loaded once at startup
// and shared read-only across requests.
type Catalog struct {
	records []models.CatalogRecord
}

// Load reads the catalog CSV from path. Rows with a malformed price are
// skipped rather than failing the whole load.
func Load(path string) (*Catalog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse catalog csv: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("catalog %s has no data rows", path)
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{colRepairer, colGarment, colService, colDescription, colPrice} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("catalog is missing required column %q", required)
		}
	}

	records := make([]models.CatalogRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		record, err := parseRow(row, index)
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("catalog %s produced no valid records", path)
	}

	return &Catalog{records: records}, nil
}

func parseRow(row []string, index map[string]int) (models.CatalogRecord, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	price, err := strconv.ParseFloat(field(colPrice), 64)
	if err != nil || price < 0 {
		return models.CatalogRecord{}, fmt.Errorf("invalid price %q", field(colPrice))
	}

	record := models.CatalogRecord{
		RepairerType: field(colRepairer),
		Category:     field(colCategory),
		GarmentType:  field(colGarment),
		Service:      field(colService),
		Description:  field(colDescription),
		Price:        price,
	}

	if raw := field(colHours); raw != "" {
		if hours, err := strconv.ParseFloat(raw, 64); err == nil && hours >= 0 {
			record.EstimatedHours = &hours
		}
	}

	return record, nil
}

// Len returns the number of catalog records
func (c *Catalog) Len() int {
	return len(c.records)
}

// Record returns the record at index i
func (c *Catalog) Record(i int) models.CatalogRecord {
	return c.records[i]
}

// Records returns the full record slice; callers must not mutate it
func (c *Catalog) Records() []models.CatalogRecord {
	return c.records
}

// Checksum hashes the embedded text of every row. The precompute job stamps
// this hash into the bundle so the server can reject vectors built from a
// different catalog.
func (c *Catalog) Checksum() string {
	var all strings.Builder
	for i := range c.records {
		all.WriteString(c.RowText(i))
		all.WriteByte('\n')
	}
	return utils.MD5Hash(all.String())
}

// RowText builds the text representation of row i that gets embedded: all
// fields newline-joined, matching the layout the precompute job indexes.
func (c *Catalog) RowText(i int) string {
	r := c.records[i]

	hours := ""
	if r.EstimatedHours != nil {
		hours = strconv.FormatFloat(*r.EstimatedHours, 'f', -1, 64)
	}

	return strings.Join([]string{
		r.RepairerType,
		r.Category,
		r.GarmentType,
		r.Service,
		r.Description,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		hours,
	}, "\n")
}
