// Package mapview renders a choropleth of mean price per district.
package mapview

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"math"
	"os"
	"strings"
	"unicode"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"mspro-labs/emlak-ai/internal/storage"
)

var (
	// ErrNoGeometry means the geometry file is missing or holds no polygons.
	ErrNoGeometry = errors.New("no district geometry")
	// ErrEmptyJoin means no polygon matched a district with a price.
	ErrEmptyJoin = errors.New("no district matched the price table")
)

var (
	lowColor  = colorful.Color{R: 1.00, G: 0.97, B: 0.92}
	highColor = colorful.Color{R: 0.50, G: 0.00, B: 0.00}
	noData    = color.RGBA{R: 0xd9, G: 0xd9, B: 0xd9, A: 0xff}
	border    = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
)

const (
	padding      = 16
	legendHeight = 44
)

// Options control the rendering.
type Options struct {
	Width        int    // image width in pixels, default 800
	NameProperty string // feature property holding the district name, default "name"
	FormatPrice  func(float64) string
}

// Result reports how the geometry joined against the price table.
type Result struct {
	Matched   []string
	Unmatched []string
}

// Render joins the GeoJSON districts at geometryPath against averages and
// writes a PNG to outPath. The previous image is kept when rendering fails.
func Render(geometryPath string, averages map[string]float64, outPath string, opts Options) (Result, error) {
	fc, err := loadGeometry(geometryPath)
	if err != nil {
		return Result{}, err
	}
	img, res, err := Draw(fc, averages, opts)
	if err != nil {
		return res, err
	}
	err = storage.WriteFileAtomic(outPath, func(w io.Writer) error {
		return png.Encode(w, img)
	})
	if err != nil {
		return res, fmt.Errorf("write map: %w", err)
	}
	return res, nil
}

func loadGeometry(path string) (*geojson.FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoGeometry, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrNoGeometry, path, err)
	}
	return fc, nil
}

// Draw renders the choropleth in memory.
func Draw(fc *geojson.FeatureCollection, averages map[string]float64, opts Options) (*image.RGBA, Result, error) {
	if opts.Width <= 0 {
		opts.Width = 800
	}
	if opts.NameProperty == "" {
		opts.NameProperty = "name"
	}
	if opts.FormatPrice == nil {
		opts.FormatPrice = func(v float64) string { return fmt.Sprintf("%.0f", v) }
	}

	var polys []districtShape
	var bound orb.Bound
	for _, f := range fc.Features {
		var mp orb.MultiPolygon
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			mp = orb.MultiPolygon{g}
		case orb.MultiPolygon:
			mp = g
		default:
			continue
		}
		if len(polys) == 0 {
			bound = mp.Bound()
		} else {
			bound = bound.Union(mp.Bound())
		}
		// Non-string names stay in the picture but never join.
		name, _ := f.Properties[opts.NameProperty].(string)
		polys = append(polys, districtShape{name: name, geom: mp})
	}
	if len(polys) == 0 {
		return nil, Result{}, ErrNoGeometry
	}

	byKey := make(map[string]float64, len(averages))
	for d, v := range averages {
		byKey[foldName(d)] = v
	}

	var res Result
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range polys {
		v, ok := byKey[foldName(polys[i].name)]
		if !ok || polys[i].name == "" {
			res.Unmatched = append(res.Unmatched, polys[i].name)
			continue
		}
		polys[i].value, polys[i].hasValue = v, true
		res.Matched = append(res.Matched, polys[i].name)
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if len(res.Matched) == 0 {
		return nil, res, ErrEmptyJoin
	}

	proj := newProjection(bound, opts.Width)
	img := image.NewRGBA(image.Rect(0, 0, opts.Width, proj.height+legendHeight))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for _, p := range polys {
		fill := color.Color(noData)
		if p.hasValue {
			fill = ramp(lo, hi, p.value)
		}
		fillPolygon(img, proj, p.geom, fill)
	}
	for _, p := range polys {
		strokePolygon(img, proj, p.geom, border)
	}
	drawLegend(img, proj.height, lo, hi, opts.FormatPrice)

	return img, res, nil
}

type districtShape struct {
	name     string
	geom     orb.MultiPolygon
	value    float64
	hasValue bool
}

// projection maps lon/lat to pixels with an equirectangular projection
// scaled by cos(mid latitude).
type projection struct {
	bound  orb.Bound
	kx     float64
	scale  float64
	height int
}

func newProjection(b orb.Bound, width int) projection {
	mid := (b.Min.Lat() + b.Max.Lat()) / 2
	kx := math.Cos(mid * math.Pi / 180)
	w := (b.Max.Lon() - b.Min.Lon()) * kx
	h := b.Max.Lat() - b.Min.Lat()
	inner := float64(width - 2*padding)

	scale := 1.0
	if w > 0 {
		scale = inner / w
	} else if h > 0 {
		scale = inner / h
	}
	height := int(math.Ceil(h*scale)) + 2*padding
	return projection{bound: b, kx: kx, scale: scale, height: height}
}

func (p projection) point(pt orb.Point) (float32, float32) {
	x := (pt.Lon()-p.bound.Min.Lon())*p.kx*p.scale + padding
	y := (p.bound.Max.Lat()-pt.Lat())*p.scale + padding
	return float32(x), float32(y)
}

func fillPolygon(img *image.RGBA, proj projection, mp orb.MultiPolygon, c color.Color) {
	b := img.Bounds()
	z := vector.NewRasterizer(b.Dx(), proj.height)
	z.DrawOp = draw.Over
	for _, poly := range mp {
		for _, ring := range poly {
			if len(ring) < 3 {
				continue
			}
			x, y := proj.point(ring[0])
			z.MoveTo(x, y)
			for _, pt := range ring[1:] {
				x, y = proj.point(pt)
				z.LineTo(x, y)
			}
			z.ClosePath()
		}
	}
	z.Draw(img, image.Rect(0, 0, b.Dx(), proj.height), image.NewUniform(c), image.Point{})
}

func strokePolygon(img *image.RGBA, proj projection, mp orb.MultiPolygon, c color.RGBA) {
	for _, poly := range mp {
		for _, ring := range poly {
			for i := 1; i < len(ring); i++ {
				x0, y0 := proj.point(ring[i-1])
				x1, y1 := proj.point(ring[i])
				line(img, int(x0), int(y0), int(x1), int(y1), c)
			}
		}
	}
}

// line draws a 1px Bresenham segment.
func line(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := abs(x1-x0), -abs(y1-y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for {
		if (image.Point{X: x0, Y: y0}).In(img.Rect) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * e; e2 >= dy {
			e += dy
			x0 += sx
		} else {
			e += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func ramp(lo, hi, v float64) color.Color {
	t := 0.5
	if hi > lo {
		t = (v - lo) / (hi - lo)
	}
	return lowColor.BlendLab(highColor, t).Clamped()
}

func drawLegend(img *image.RGBA, top int, lo, hi float64, format func(float64) string) {
	width := img.Bounds().Dx()
	barTop, barBottom := top+4, top+16
	for x := padding; x < width-padding; x++ {
		t := float64(x-padding) / float64(width-2*padding-1)
		c := lowColor.BlendLab(highColor, t).Clamped()
		for y := barTop; y < barBottom; y++ {
			img.Set(x, y, c)
		}
	}

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	baseline := fixed.I(barBottom + 16)

	d.Dot = fixed.Point26_6{X: fixed.I(padding), Y: baseline}
	d.DrawString(format(lo))

	hiText := format(hi)
	d.Dot = fixed.Point26_6{X: fixed.I(width-padding) - d.MeasureString(hiText), Y: baseline}
	d.DrawString(hiText)
}

// foldName makes district names comparable across case, accents and the
// dotted/dotless i: "KADIKÖY", "Kadıköy" and "kadikoy" fold to the same key.
func foldName(s string) string {
	s = cases.Lower(language.Turkish).String(norm.NFC.String(strings.TrimSpace(s)))
	s, _, _ = transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	return strings.ReplaceAll(s, "ı", "i")
}
