// Package align joins per-model prediction frames on their id column.
package align

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/crediblend/crediblend/internal/models"
)

// Stats describes what the join discarded.
type Stats struct {
	// TotalIDs is the number of distinct ids across all frames.
	TotalIDs int `json:"total_ids"`
	// CommonIDs is the number of ids present in every frame.
	CommonIDs int `json:"common_ids"`
	// Dropped is TotalIDs - CommonIDs.
	Dropped int `json:"dropped"`
}

// Align inner-joins frames on id. Row order of the result is sorted by id
// (numerically when every id is a number) and columns follow frame order.
// Targets, folds and times come from the first frame carrying them.
func Align(frames []*models.PredictionFrame) (*models.AlignedMatrix, Stats, error) {
	if len(frames) < 2 {
		return nil, Stats{}, &models.AlignmentError{Frames: len(frames), Message: "at least 2 prediction frames are required"}
	}

	names := make(map[string]bool, len(frames))
	for _, f := range frames {
		if names[f.Name] {
			return nil, Stats{}, &models.SchemaError{Frame: f.Name, Column: "id", Message: "duplicate model name"}
		}
		names[f.Name] = true
		if err := f.Validate(); err != nil {
			return nil, Stats{}, err
		}
	}

	// index of each id per frame
	indexes := make([]map[string]int, len(frames))
	all := make(map[string]struct{})
	for k, f := range frames {
		idx := make(map[string]int, f.Len())
		for i, id := range f.IDs {
			idx[id] = i
			all[id] = struct{}{}
		}
		indexes[k] = idx
	}

	common := make([]string, 0, frames[0].Len())
	for _, id := range frames[0].IDs {
		inAll := true
		for k := 1; k < len(frames); k++ {
			if _, ok := indexes[k][id]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			common = append(common, id)
		}
	}

	stats := Stats{TotalIDs: len(all), CommonIDs: len(common), Dropped: len(all) - len(common)}
	if len(common) == 0 {
		return nil, stats, &models.AlignmentError{Frames: len(frames), Message: "no id is common to all frames"}
	}
	SortIDs(common)

	m := &models.AlignedMatrix{
		IDs:     common,
		Models:  make([]string, len(frames)),
		Columns: make([][]float64, len(frames)),
	}
	for k, f := range frames {
		m.Models[k] = f.Name
		col := make([]float64, len(common))
		for i, id := range common {
			col[i] = f.Preds[indexes[k][id]]
		}
		m.Columns[k] = col
	}

	targets, err := joinTargets(frames, indexes, common)
	if err != nil {
		return nil, stats, err
	}
	m.Targets = targets
	m.Folds = joinFolds(frames, indexes, common)
	m.Times = joinTimes(frames, indexes, common)

	return m, stats, nil
}

// joinTargets takes targets from the first frame that has them and checks
// every other frame agrees on the common rows.
func joinTargets(frames []*models.PredictionFrame, indexes []map[string]int, ids []string) ([]float64, error) {
	var out []float64
	source := ""
	for k, f := range frames {
		if !f.HasTargets() {
			continue
		}
		if out == nil {
			out = make([]float64, len(ids))
			for i, id := range ids {
				out[i] = f.Targets[indexes[k][id]]
			}
			source = f.Name
			continue
		}
		for i, id := range ids {
			if t := f.Targets[indexes[k][id]]; t != out[i] {
				return nil, &models.SchemaError{
					Frame:   f.Name,
					Column:  "target",
					Message: fmt.Sprintf("target for id %q is %g but %s has %g", id, t, source, out[i]),
				}
			}
		}
	}
	return out, nil
}

func joinFolds(frames []*models.PredictionFrame, indexes []map[string]int, ids []string) []int {
	for k, f := range frames {
		if !f.HasFolds() {
			continue
		}
		out := make([]int, len(ids))
		for i, id := range ids {
			out[i] = f.Folds[indexes[k][id]]
		}
		return out
	}
	return nil
}

func joinTimes(frames []*models.PredictionFrame, indexes []map[string]int, ids []string) []time.Time {
	for k, f := range frames {
		if !f.HasTimes() {
			continue
		}
		out := make([]time.Time, len(ids))
		for i, id := range ids {
			out[i] = f.Times[indexes[k][id]]
		}
		return out
	}
	return nil
}

// SortIDs sorts ids in place: numerically when all of them parse as
// finite numbers, lexicographically otherwise.
func SortIDs(ids []string) {
	nums := make([]float64, len(ids))
	numeric := true
	for i, id := range ids {
		v, err := strconv.ParseFloat(id, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			numeric = false
			break
		}
		nums[i] = v
	}
	if !numeric {
		sort.Strings(ids)
		return
	}
	sort.Sort(numericIDs{ids: ids, nums: nums})
}

type numericIDs struct {
	ids  []string
	nums []float64
}

func (s numericIDs) Len() int { return len(s.ids) }

func (s numericIDs) Less(i, j int) bool {
	if s.nums[i] != s.nums[j] {
		return s.nums[i] < s.nums[j]
	}
	return s.ids[i] < s.ids[j]
}

func (s numericIDs) Swap(i, j int) {
	s.ids[i], s.ids[j] = s.ids[j], s.ids[i]
	s.nums[i], s.nums[j] = s.nums[j], s.nums[i]
}

// Pair restricts an OOF and a submission matrix to the models both carry,
// in OOF order. It returns the names dropped from either side.
func Pair(oof, sub *models.AlignedMatrix) (*models.AlignedMatrix, *models.AlignedMatrix, []string, error) {
	inSub := make(map[string]bool, sub.NumModels())
	for _, name := range sub.Models {
		inSub[name] = true
	}
	inOOF := make(map[string]bool, oof.NumModels())
	for _, name := range oof.Models {
		inOOF[name] = true
	}

	var common, dropped []string
	for _, name := range oof.Models {
		if inSub[name] {
			common = append(common, name)
		} else {
			dropped = append(dropped, name)
		}
	}
	for _, name := range sub.Models {
		if !inOOF[name] {
			dropped = append(dropped, name)
		}
	}

	if len(common) < 2 {
		return nil, nil, dropped, &models.AlignmentError{
			Frames:  len(common),
			Message: "fewer than 2 models have both oof and submission predictions",
		}
	}

	o, err := oof.Select(common)
	if err != nil {
		return nil, nil, dropped, err
	}
	s, err := sub.Select(common)
	if err != nil {
		return nil, nil, dropped, err
	}
	return o, s, dropped, nil
}
