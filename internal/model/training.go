package model

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mspro-labs/emlak-ai/internal/models"
)

// SampleRows is the built-in training table. The scraped listings CSV is
// not a training source: it has no area, room or age columns.
func SampleRows() []models.TrainingRow {
	return []models.TrainingRow{
		{Area: 100, RoomCount: 3, BuildingAge: 10, District: "Kadıköy", Price: 2_000_000},
		{Area: 120, RoomCount: 4, BuildingAge: 5, District: "Beşiktaş", Price: 3_200_000},
		{Area: 85, RoomCount: 2, BuildingAge: 20, District: "Üsküdar", Price: 1_300_000},
		{Area: 140, RoomCount: 4, BuildingAge: 3, District: "Ataşehir", Price: 2_700_000},
		{Area: 95, RoomCount: 3, BuildingAge: 15, District: "Bakırköy", Price: 1_900_000},
	}
}

var trainingHeader = []string{"area", "rooms", "age", "district", "price"}

// LoadTrainingCSV reads rows with the header area,rooms,age,district,price.
func LoadTrainingCSV(path string) ([]models.TrainingRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open training file: %w", err)
	}
	defer f.Close()
	return ReadTrainingCSV(f)
}

// ReadTrainingCSV parses training rows from r.
func ReadTrainingCSV(r io.Reader) ([]models.TrainingRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(trainingHeader)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoTrainingData
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, h := range trainingHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), h) {
			return nil, fmt.Errorf("unexpected header %v, want %v", header, trainingHeader)
		}
	}

	var rows []models.TrainingRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row, err := parseTrainingRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, ErrNoTrainingData
	}
	return rows, nil
}

func parseTrainingRecord(rec []string) (models.TrainingRow, error) {
	nums := make([]float64, 0, 4)
	for _, i := range []int{0, 1, 2, 4} {
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[i]), 64)
		if err != nil {
			return models.TrainingRow{}, fmt.Errorf("column %s: %w", trainingHeader[i], err)
		}
		nums = append(nums, v)
	}
	district := strings.TrimSpace(rec[3])
	if district == "" {
		return models.TrainingRow{}, errors.New("empty district")
	}
	return models.TrainingRow{
		Area:        nums[0],
		RoomCount:   nums[1],
		BuildingAge: nums[2],
		District:    district,
		Price:       nums[3],
	}, nil
}
