package sizes

import "sort"

// SizeMap groups sizes by reduced aspect ratio. A ratio is present only
// while it holds at least one size.
type SizeMap struct {
	ratios map[AspectRatio][]Size
}

// NewSizeMap returns an empty map.
func NewSizeMap() *SizeMap {
	return &SizeMap{ratios: make(map[AspectRatio][]Size)}
}

// Add files s under its ratio. It returns false if s was already present
// or is not a valid size.
func (m *SizeMap) Add(s Size) bool {
	if s.Width <= 0 || s.Height <= 0 {
		return false
	}
	if m.ratios == nil {
		m.ratios = make(map[AspectRatio][]Size)
	}
	r := RatioOf(s)
	bucket := m.ratios[r]
	for _, existing := range bucket {
		if existing == s {
			return false
		}
	}
	bucket = append(bucket, s)
	sortSizes(bucket)
	m.ratios[r] = bucket
	return true
}

// Remove drops a ratio and all of its sizes.
func (m *SizeMap) Remove(r AspectRatio) {
	delete(m.ratios, r)
}

// Ratios returns the ratios present, ascending.
func (m *SizeMap) Ratios() []AspectRatio {
	out := make([]AspectRatio, 0, len(m.ratios))
	for r := range m.ratios {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Has reports whether r has at least one size.
func (m *SizeMap) Has(r AspectRatio) bool {
	return len(m.ratios[r]) > 0
}

// Sizes returns a copy of the sizes for r in ascending area order.
func (m *SizeMap) Sizes(r AspectRatio) []Size {
	bucket := m.ratios[r]
	if len(bucket) == 0 {
		return nil
	}
	out := make([]Size, len(bucket))
	copy(out, bucket)
	return out
}

// Largest returns the largest size for r.
func (m *SizeMap) Largest(r AspectRatio) (Size, bool) {
	bucket := m.ratios[r]
	if len(bucket) == 0 {
		return Size{}, false
	}
	return bucket[len(bucket)-1], true
}

// Len returns the total number of sizes.
func (m *SizeMap) Len() int {
	n := 0
	for _, b := range m.ratios {
		n += len(b)
	}
	return n
}

// IsEmpty reports whether the map holds no sizes.
func (m *SizeMap) IsEmpty() bool {
	return len(m.ratios) == 0
}

// Clear removes everything.
func (m *SizeMap) Clear() {
	m.ratios = make(map[AspectRatio][]Size)
}

// Collect buckets every size that fits within bound. A zero bound keeps
// everything.
func Collect(sizes []Size, bound Size) *SizeMap {
	m := NewSizeMap()
	for _, s := range sizes {
		if !bound.IsZero() && (s.Width > bound.Width || s.Height > bound.Height) {
			continue
		}
		m.Add(s)
	}
	return m
}

// CollectAll buckets every size without a bound. Used for still pictures.
func CollectAll(sizes []Size) *SizeMap {
	return Collect(sizes, Size{})
}

// Reconcile removes every preview ratio that has no still-picture size,
// and returns the preview map for chaining.
func Reconcile(preview, picture *SizeMap) *SizeMap {
	for _, r := range preview.Ratios() {
		if !picture.Has(r) {
			preview.Remove(r)
		}
	}
	return preview
}

// ChooseOptimal picks the smallest candidate at least as large as the
// surface, comparing against its longer and shorter edges. When none is
// large enough it returns the largest candidate. The result does not depend
// on the order of candidates.
func ChooseOptimal(candidates []Size, surfaceWidth, surfaceHeight int) (Size, bool) {
	if len(candidates) == 0 {
		return Size{}, false
	}
	longer, shorter := surfaceWidth, surfaceHeight
	if surfaceWidth < surfaceHeight {
		longer, shorter = surfaceHeight, surfaceWidth
	}

	sorted := make([]Size, len(candidates))
	copy(sorted, candidates)
	sortSizes(sorted)

	for _, s := range sorted {
		if s.Width >= longer && s.Height >= shorter {
			return s, true
		}
	}
	return sorted[len(sorted)-1], true
}
