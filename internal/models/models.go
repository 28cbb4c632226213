package models

import "time"

// RawListing holds the text fields scraped for a single classified ad.
type RawListing struct {
	Title        string
	PriceText    string
	LocationText string
	URL          string
}

// ListingRecord is a cleaned listing. Price is in TL.
type ListingRecord struct {
	Price     float64
	Region    string
	Subregion string
	Title     string
	URL       string
}

// TrainingRow is one labelled example for the price model.
type TrainingRow struct {
	Area        float64
	RoomCount   float64
	BuildingAge float64
	District    string
	Price       float64
}

// Features is the model input collected by the form.
type Features struct {
	Area        float64
	RoomCount   float64
	BuildingAge float64
	District    string
}

// RefreshRun summarises one refresh job execution.
type RefreshRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Fetched    int
	Kept       int
	Dropped    int
	Error      string
}
