// Package model implements the price estimator: per-feature standard
// scaling of the numeric inputs, one-hot encoding of the district and a
// gradient-boosted ensemble of least-squares regression trees.
package model

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"mspro-labs/emlak-ai/internal/models"
)

// ErrNoTrainingData is returned by Train when given no rows.
var ErrNoTrainingData = errors.New("no training rows")

// Params are the boosting hyperparameters.
type Params struct {
	NEstimators     int
	LearningRate    float64
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
}

// DefaultParams returns 200 depth-3 trees at learning rate 0.1.
func DefaultParams() Params {
	return Params{
		NEstimators:     200,
		LearningRate:    0.1,
		MaxDepth:        3,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

// Model is a fitted pipeline. It is read-only after Train and safe for
// concurrent use.
type Model struct {
	params   Params
	scaler   scaler
	encoder  encoder
	init     float64
	trees    []*node
	averages map[string]float64
	rows     int
}

// Train fits the pipeline on rows.
func Train(rows []models.TrainingRow, params Params) (*Model, error) {
	if len(rows) == 0 {
		return nil, ErrNoTrainingData
	}
	if params.NEstimators <= 0 || params.LearningRate <= 0 || params.MaxDepth <= 0 {
		return nil, fmt.Errorf("invalid params: %+v", params)
	}
	if params.MinSamplesSplit < 2 {
		params.MinSamplesSplit = 2
	}
	if params.MinSamplesLeaf < 1 {
		params.MinSamplesLeaf = 1
	}

	m := &Model{
		params:   params,
		scaler:   fitScaler(rows),
		encoder:  fitEncoder(rows),
		averages: districtAverages(rows),
		rows:     len(rows),
	}

	x := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		x[i] = m.transform(r.Area, r.RoomCount, r.BuildingAge, r.District)
		y[i] = r.Price
		m.init += r.Price
	}
	m.init /= float64(len(rows))

	pred := make([]float64, len(rows))
	for i := range pred {
		pred[i] = m.init
	}
	residual := make([]float64, len(rows))
	all := make([]int, len(rows))
	for i := range all {
		all[i] = i
	}

	m.trees = make([]*node, 0, params.NEstimators)
	for stage := 0; stage < params.NEstimators; stage++ {
		for i := range residual {
			residual[i] = y[i] - pred[i]
		}
		b := &treeBuilder{
			x:               x,
			y:               residual,
			maxDepth:        params.MaxDepth,
			minSamplesSplit: params.MinSamplesSplit,
			minSamplesLeaf:  params.MinSamplesLeaf,
		}
		tree := b.build(all, 0)
		m.trees = append(m.trees, tree)
		for i := range pred {
			pred[i] += params.LearningRate * tree.predict(x[i])
		}
	}

	return m, nil
}

// Predict returns the estimated price for one property. Inputs are not
// validated; an unknown district is encoded as all zeros. The result is
// never negative.
func (m *Model) Predict(f models.Features) float64 {
	x := m.transform(f.Area, f.RoomCount, f.BuildingAge, f.District)
	out := m.init
	for _, t := range m.trees {
		out += m.params.LearningRate * t.predict(x)
	}
	if math.IsNaN(out) || out < 0 {
		return 0
	}
	return out
}

// Districts returns the known districts in encoding order.
func (m *Model) Districts() []string {
	return append([]string(nil), m.encoder.categories...)
}

// KnownDistrict reports whether d was seen during training.
func (m *Model) KnownDistrict(d string) bool {
	_, ok := m.encoder.index[d]
	return ok
}

// DistrictAverages returns the mean training price per district.
func (m *Model) DistrictAverages() map[string]float64 {
	out := make(map[string]float64, len(m.averages))
	for k, v := range m.averages {
		out[k] = v
	}
	return out
}

// TrainingRows is the number of rows the model was fitted on.
func (m *Model) TrainingRows() int { return m.rows }

func (m *Model) transform(area, rooms, age float64, district string) []float64 {
	x := make([]float64, 0, 3+len(m.encoder.categories))
	x = append(x, m.scaler.apply([]float64{area, rooms, age})...)
	return append(x, m.encoder.apply(district)...)
}

// scaler standardises each numeric column to zero mean and unit variance.
type scaler struct {
	mean  []float64
	scale []float64
}

func fitScaler(rows []models.TrainingRow) scaler {
	cols := [][]float64{make([]float64, len(rows)), make([]float64, len(rows)), make([]float64, len(rows))}
	for i, r := range rows {
		cols[0][i], cols[1][i], cols[2][i] = r.Area, r.RoomCount, r.BuildingAge
	}

	s := scaler{mean: make([]float64, 3), scale: make([]float64, 3)}
	for c, col := range cols {
		var sum float64
		for _, v := range col {
			sum += v
		}
		mean := sum / float64(len(col))
		var ss float64
		for _, v := range col {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / float64(len(col)))
		if std == 0 {
			std = 1
		}
		s.mean[c], s.scale[c] = mean, std
	}
	return s
}

func (s scaler) apply(v []float64) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		out[i] = (v[i] - s.mean[i]) / s.scale[i]
	}
	return out
}

// encoder one-hot encodes the district; unseen values map to all zeros.
type encoder struct {
	categories []string
	index      map[string]int
}

func fitEncoder(rows []models.TrainingRow) encoder {
	index := make(map[string]int)
	for _, r := range rows {
		index[r.District] = 0
	}
	cats := make([]string, 0, len(index))
	for d := range index {
		cats = append(cats, d)
	}
	sort.Strings(cats)
	for i, d := range cats {
		index[d] = i
	}
	return encoder{categories: cats, index: index}
}

func (e encoder) apply(district string) []float64 {
	out := make([]float64, len(e.categories))
	if i, ok := e.index[district]; ok {
		out[i] = 1
	}
	return out
}

func districtAverages(rows []models.TrainingRow) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, r := range rows {
		sums[r.District] += r.Price
		counts[r.District]++
	}
	out := make(map[string]float64, len(sums))
	for d, s := range sums {
		out[d] = s / float64(counts[d])
	}
	return out
}
