package worker

import "fmt"

// ThresholdSlice returns the in-slice pixel indices whose value lies in
// [min, max].
func ThresholdSlice(width, height int32, min, max float32, values []float32) ([]int32, error) {
	if err := checkSliceShape(width, height, len(values)); err != nil {
		return nil, err
	}
	var indices []int32
	for i, v := range values {
		if v >= min && v <= max {
			indices = append(indices, int32(i))
		}
	}
	return indices, nil
}

// RegionGrowSlice flood-fills from a seed pixel, selecting 4-connected
// pixels whose value is within tolerance of the seed value.  The result
// is in claim order, seed first; an out-of-bounds seed yields an empty
// selection.
func RegionGrowSlice(width, height int32, seedIndex int32, tolerance float32, values []float32) ([]int32, error) {
	if err := checkSliceShape(width, height, len(values)); err != nil {
		return nil, err
	}
	n := int32(len(values))
	if seedIndex < 0 || seedIndex >= n {
		return nil, nil
	}
	seedValue := values[seedIndex]

	visited := make([]bool, n)
	visited[seedIndex] = true
	selected := make([]int32, 0, 64)
	selected = append(selected, seedIndex)

	within := func(idx int32) bool {
		d := values[idx] - seedValue
		if d < 0 {
			d = -d
		}
		return d <= tolerance
	}

	// selected doubles as the BFS frontier; head chases the append edge.
	for head := 0; head < len(selected); head++ {
		idx := selected[head]
		x, y := idx%width, idx/width
		if x > 0 {
			tryClaim(idx-1, visited, within, &selected)
		}
		if x < width-1 {
			tryClaim(idx+1, visited, within, &selected)
		}
		if y > 0 {
			tryClaim(idx-width, visited, within, &selected)
		}
		if y < height-1 {
			tryClaim(idx+width, visited, within, &selected)
		}
	}
	return selected, nil
}

func tryClaim(idx int32, visited []bool, within func(int32) bool, selected *[]int32) {
	if visited[idx] {
		return
	}
	visited[idx] = true
	if within(idx) {
		*selected = append(*selected, idx)
	}
}

func checkSliceShape(width, height int32, n int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid slice shape %d x %d", width, height)
	}
	if int(width)*int(height) != n {
		return fmt.Errorf("slice shape %d x %d does not match %d values", width, height, n)
	}
	return nil
}
