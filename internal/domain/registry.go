package domain

import (
	"cmp"
	"slices"
	"sync"
)

// RegistryOptions carries the engine settings used whenever the registry
// re-groups a series.
type RegistryOptions struct {
	Grouping GroupingOptions
	Ordering OrderingOptions
}

// SeriesNode is one grouped, ordered series. Nodes are replaced, never
// mutated, so a node handed out stays valid.
type SeriesNode struct {
	Key           GroupKey
	Description   string
	Modality      string
	SeriesNumber  *int
	InstanceCount int
	Group         *Group
	Ordering      *OrderingResult
}

// Pass is the output of one grouping+ordering run over a consistent batch.
type Pass struct {
	// Primaries lists the nominal series the batch fully covers.
	Primaries   map[PrimaryKey]bool
	Headers     []*DicomHeader
	Grouping    *GroupingResult
	Orderings   map[GroupKey]*OrderingResult
	GroupErrors []*GroupError
}

// RunPass groups headers and orders every resulting group.
func RunPass(headers []*DicomHeader, opts RegistryOptions) *Pass {
	p := &Pass{
		Primaries: make(map[PrimaryKey]bool),
		Headers:   headers,
		Grouping:  GroupHeaders(headers, opts.Grouping),
		Orderings: make(map[GroupKey]*OrderingResult),
	}
	for _, h := range headers {
		if h != nil {
			p.Primaries[h.Primary()] = true
		}
	}
	for _, key := range p.Grouping.Keys {
		res, err := OrderGroup(p.Grouping.Groups[key], opts.Ordering)
		if err != nil {
			p.GroupErrors = append(p.GroupErrors, &GroupError{Key: key, Err: err})
			continue
		}
		p.Orderings[key] = res
	}
	return p
}

// MergeResult describes what a merge changed.
type MergeResult struct {
	Affected    []GroupKey
	Removed     []GroupKey
	Duplicates  []*DuplicateInstanceError
	GroupErrors []*GroupError
}

// Registry is the Patient→Study→Series view over every grouped file. It is
// safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	opts      RegistryOptions
	headers   map[string]*DicomHeader
	byPrimary map[PrimaryKey]map[string]*DicomHeader
	series    map[GroupKey]*SeriesNode
}

// NewRegistry creates an empty registry.
func NewRegistry(opts RegistryOptions) *Registry {
	return &Registry{
		opts:      opts,
		headers:   make(map[string]*DicomHeader),
		byPrimary: make(map[PrimaryKey]map[string]*DicomHeader),
		series:    make(map[GroupKey]*SeriesNode),
	}
}

// Merge folds a pass into the registry. Every series of a primary the pass
// covers is replaced; the rest are left alone.
func (r *Registry) Merge(p *Pass) *MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	for primary := range p.Primaries {
		for _, h := range r.byPrimary[primary] {
			r.removeHeader(h)
		}
	}
	for _, h := range p.Headers {
		if h != nil {
			r.putHeader(h)
		}
	}
	return r.replaceSeries(p)
}

// Apply adds new or changed headers and re-groups only the nominal series they
// touch. A header whose path is already known with the same fingerprint is
// treated as unchanged.
func (r *Registry) Apply(headers []*DicomHeader) *MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make(map[PrimaryKey]bool)
	for _, h := range headers {
		if h == nil {
			continue
		}
		if old, ok := r.headers[h.Path]; ok {
			if unchanged(old, h) {
				continue
			}
			affected[old.Primary()] = true
			r.removeHeader(old)
		}
		r.putHeader(h)
		affected[h.Primary()] = true
	}
	return r.regroup(affected)
}

// Remove drops files that no longer exist and re-groups their series.
func (r *Registry) Remove(paths []string) *MergeResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	affected := make(map[PrimaryKey]bool)
	for _, p := range paths {
		if h, ok := r.headers[p]; ok {
			affected[h.Primary()] = true
			r.removeHeader(h)
		}
	}
	return r.regroup(affected)
}

func unchanged(old, h *DicomHeader) bool {
	return old == h || (!h.Fingerprint.IsZero() && old.Fingerprint == h.Fingerprint)
}

// regroup must be called with mu held.
func (r *Registry) regroup(affected map[PrimaryKey]bool) *MergeResult {
	if len(affected) == 0 {
		return &MergeResult{}
	}

	var batch []*DicomHeader
	for primary := range affected {
		for _, h := range r.byPrimary[primary] {
			batch = append(batch, h)
		}
	}
	slices.SortFunc(batch, func(a, b *DicomHeader) int { return CompareNatural(a.Path, b.Path) })

	p := RunPass(batch, r.opts)
	// Primaries that lost every file still need their old series removed.
	for primary := range affected {
		p.Primaries[primary] = true
	}
	return r.replaceSeries(p)
}

// replaceSeries must be called with mu held.
func (r *Registry) replaceSeries(p *Pass) *MergeResult {
	res := &MergeResult{
		Duplicates:  p.Grouping.Duplicates,
		GroupErrors: p.GroupErrors,
	}

	for key := range r.series {
		if !p.Primaries[key.Primary()] {
			continue
		}
		if _, kept := p.Orderings[key]; !kept {
			res.Removed = append(res.Removed, key)
		}
		delete(r.series, key)
	}

	for _, key := range p.Grouping.Keys {
		ordering, ok := p.Orderings[key]
		if !ok {
			continue
		}
		r.series[key] = newSeriesNode(p.Grouping.Groups[key], ordering)
		res.Affected = append(res.Affected, key)
	}

	slices.SortFunc(res.Removed, GroupKey.Compare)
	return res
}

func newSeriesNode(g *Group, ordering *OrderingResult) *SeriesNode {
	descriptions := make([]string, len(g.Members))
	modalities := make([]string, len(g.Members))
	var numbers []int
	for i, h := range g.Members {
		descriptions[i] = h.SeriesDescription
		modalities[i] = h.Modality
		if h.SeriesNumber != nil {
			numbers = append(numbers, *h.SeriesNumber)
		}
	}
	node := &SeriesNode{
		Key:           g.Key,
		Description:   Majority(descriptions),
		Modality:      Majority(modalities),
		InstanceCount: len(g.Members),
		Group:         g,
		Ordering:      ordering,
	}
	if len(numbers) > 0 {
		n := majorityInt(numbers)
		node.SeriesNumber = &n
	}
	return node
}

func (r *Registry) putHeader(h *DicomHeader) {
	r.headers[h.Path] = h
	primary := h.Primary()
	if r.byPrimary[primary] == nil {
		r.byPrimary[primary] = make(map[string]*DicomHeader)
	}
	r.byPrimary[primary][h.Path] = h
}

func (r *Registry) removeHeader(h *DicomHeader) {
	delete(r.headers, h.Path)
	primary := h.Primary()
	delete(r.byPrimary[primary], h.Path)
	if len(r.byPrimary[primary]) == 0 {
		delete(r.byPrimary, primary)
	}
}

// Majority returns the most frequent non-empty value; ties go to the lexically
// smallest.
func Majority(values []string) string {
	counts := make(map[string]int)
	for _, v := range values {
		if v != "" {
			counts[v]++
		}
	}
	best, bestCount := "", 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

func majorityInt(values []int) int {
	counts := make(map[int]int)
	for _, v := range values {
		counts[v]++
	}
	best, bestCount := 0, 0
	for v, n := range counts {
		if n > bestCount || (n == bestCount && v < best) {
			best, bestCount = v, n
		}
	}
	return best
}

// Paths returns every known file path in natural order.
func (r *Registry) Paths() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.headers))
	for p := range r.headers {
		out = append(out, p)
	}
	slices.SortFunc(out, CompareNatural)
	return out
}

// Len returns the number of series.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.series)
}

// node returns the current node for key, for tests and views.
func (r *Registry) node(key GroupKey) *SeriesNode {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.series[key]
}

func (r *Registry) sortedNodes(keep func(*SeriesNode) bool) []*SeriesNode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*SeriesNode
	for _, n := range r.series {
		if keep == nil || keep(n) {
			out = append(out, n)
		}
	}
	slices.SortFunc(out, func(a, b *SeriesNode) int { return a.Key.Compare(b.Key) })
	return out
}

// compareSeriesNumber puts numbered series first, in number order.
func compareSeriesNumber(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return cmp.Compare(*a, *b)
}
