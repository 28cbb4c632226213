package cleaner

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"mspro-labs/emlak-ai/internal/models"
)

// rePriceJunk removes currency markers, spaces and anything else that is
// not part of a Turkish-formatted number ("1.234.567,50 TL").
var rePriceJunk = regexp.MustCompile(`[^\d.,]+`)

// LocationSeparator splits "İstanbul/Kadıköy" into region and subregion.
const LocationSeparator = "/"

// Result is the output of a Clean pass.
type Result struct {
	Records []models.ListingRecord
	Dropped int
}

// Cleaner transforms RawListings into typed ListingRecords.
type Cleaner struct {
	logger *slog.Logger
}

// New creates a Cleaner with the given logger.
func New(logger *slog.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean converts raw listings, dropping rows whose price or location does not parse.
func (c *Cleaner) Clean(raw []models.RawListing) Result {
	out := Result{Records: make([]models.ListingRecord, 0, len(raw))}

	for _, r := range raw {
		price, ok := ParsePrice(r.PriceText)
		if !ok {
			c.logger.Debug("dropping listing with unparseable price", "title", r.Title, "price_text", r.PriceText)
			out.Dropped++
			continue
		}
		region, subregion, ok := SplitLocation(r.LocationText)
		if !ok {
			c.logger.Debug("dropping listing with malformed location", "title", r.Title, "location_text", r.LocationText)
			out.Dropped++
			continue
		}
		out.Records = append(out.Records, models.ListingRecord{
			Price:     price,
			Region:    region,
			Subregion: subregion,
			Title:     strings.Join(strings.Fields(r.Title), " "),
			URL:       strings.TrimSpace(r.URL),
		})
	}

	c.logger.Info("cleaned listings", "in", len(raw), "kept", len(out.Records), "dropped", out.Dropped)
	return out
}

// ParsePrice reads a price such as "1.234.567 TL" or "₺2.450.000,50".
// Dots are thousands separators and a comma starts the decimal part.
func ParsePrice(text string) (float64, bool) {
	val := rePriceJunk.ReplaceAllString(text, "")
	if val == "" || strings.Count(val, ",") > 1 {
		return 0, false
	}
	val = strings.ReplaceAll(val, ".", "")
	val = strings.Replace(val, ",", ".", 1)
	if val == "" || val == "." {
		return 0, false
	}
	price, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// SplitLocation splits "Region/Subregion". Anything other than exactly two
// non-empty parts is rejected.
func SplitLocation(text string) (region, subregion string, ok bool) {
	parts := strings.Split(text, LocationSeparator)
	if len(parts) != 2 {
		return "", "", false
	}
	region = strings.TrimSpace(parts[0])
	subregion = strings.TrimSpace(parts[1])
	if region == "" || subregion == "" {
		return "", "", false
	}
	return region, subregion, true
}
