package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"mspro-labs/emlak-ai/internal/models"
)

// CSVHeader is the column order of the listings file.
var CSVHeader = []string{"price", "region", "subregion"}

// WriteListingsCSV replaces the file at path with the given records. The
// data goes to a temp file in the same directory first and is renamed over
// the target, so readers never see a half-written file. An empty slice
// produces a header-only file.
func WriteListingsCSV(path string, records []models.ListingRecord) error {
	err := WriteFileAtomic(path, func(f io.Writer) error {
		w := csv.NewWriter(f)
		if err := w.Write(CSVHeader); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
		for _, r := range records {
			row := []string{
				strconv.FormatFloat(r.Price, 'f', -1, 64),
				r.Region,
				r.Subregion,
			}
			if err := w.Write(row); err != nil {
				return fmt.Errorf("write row: %w", err)
			}
		}
		w.Flush()
		return w.Error()
	})
	if err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	return nil
}

// ReadListingsCSV loads a file written by WriteListingsCSV.
func ReadListingsCSV(path string) ([]models.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(CSVHeader)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv: %q has no header", path)
	}

	out := make([]models.ListingRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		price, err := strconv.ParseFloat(row[0], 64)
		if err != nil {
			return nil, fmt.Errorf("csv: line %d: %w", i+2, err)
		}
		out = append(out, models.ListingRecord{Price: price, Region: row[1], Subregion: row[2]})
	}
	return out, nil
}
