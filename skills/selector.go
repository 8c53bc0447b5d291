package skills

import (
	"context"
	"sort"
	"time"

	"github.com/BaSui01/skillflow/types"
	"go.uber.org/zap"
)

// Match 是一条带分数的选择结果
type Match struct {
	Skill    *Descriptor
	Group    string  // 分层模式下的所属分组
	Distance float64 // 与查询向量的 L2 距离
	Rank     int     // 从 1 开始
}

// GroupMatch 是一条分组选择结果
type GroupMatch struct {
	Group    *Group
	Distance float64
	Rank     int // 从 1 开始
}

// SelectionRecorder 记录选择指标，由 metrics.Collector 实现
type SelectionRecorder interface {
	RecordSelection(mode, result string, duration time.Duration)
}

// Selector 把自由文本查询解析为排好序的候选技能
type Selector struct {
	registry  *Registry
	embedder  Embedder
	groupTopK int
	logger    *zap.Logger
	recorder  SelectionRecorder
}

// SelectorOption 配置 Selector
type SelectorOption func(*Selector)

// WithGroupTopK 设置分层模式第一阶段保留的分组数，默认 1
func WithGroupTopK(n int) SelectorOption {
	return func(s *Selector) {
		if n > 0 {
			s.groupTopK = n
		}
	}
}

// WithSelectorLogger 设置日志
func WithSelectorLogger(logger *zap.Logger) SelectorOption {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSelectionRecorder 设置指标记录器
func WithSelectionRecorder(rec SelectionRecorder) SelectorOption {
	return func(s *Selector) { s.recorder = rec }
}

// NewSelector 创建 Selector。registry 可以为 nil，此时所有选择都返回空结果。
func NewSelector(registry *Registry, embedder Embedder, opts ...SelectorOption) *Selector {
	s := &Selector{
		registry:  registry,
		embedder:  embedder,
		groupTopK: 1,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "skill_selector"))
	return s
}

// Registry 返回底层注册表
func (s *Selector) Registry() *Registry { return s.registry }

// Select 返回至多 topK 个技能，按相关度排序
func (s *Selector) Select(ctx context.Context, query string, topK int) ([]*Descriptor, error) {
	matches, err := s.SelectScored(ctx, query, topK)
	if err != nil {
		return nil, err
	}
	out := make([]*Descriptor, len(matches))
	for i, m := range matches {
		out[i] = m.Skill
	}
	return out, nil
}

// SelectScored 与 Select 相同，但附带距离、分组与名次
func (s *Selector) SelectScored(ctx context.Context, query string, topK int) (matches []Match, err error) {
	if topK <= 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "top_k must be positive, got %d", topK)
	}

	start := time.Now()
	mode := string(s.registry.Mode())
	defer func() { s.record(mode, len(matches), err, time.Since(start)) }()

	if s.registry.Len() == 0 {
		return []Match{}, nil
	}

	qv, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}

	switch s.registry.mode {
	case ModeHierarchical:
		matches, err = s.selectHierarchical(qv, topK)
	default:
		matches, err = s.selectFlat(qv, topK)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("skills selected",
		zap.String("mode", mode),
		zap.Int("top_k", topK),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// SelectGroup 返回与查询最接近的 topKGroups 个分组；flat 模式或没有分组时返回空结果
func (s *Selector) SelectGroup(ctx context.Context, query string, topKGroups int) ([]GroupMatch, error) {
	if topKGroups <= 0 {
		return nil, types.Errorf(types.ErrInvalidArgument, "group top_k must be positive, got %d", topKGroups)
	}
	if s.registry == nil || len(s.registry.groups) == 0 {
		return []GroupMatch{}, nil
	}
	qv, err := embedQuery(ctx, s.embedder, query)
	if err != nil {
		return nil, err
	}
	return s.selectGroups(qv, topKGroups)
}

func (s *Selector) selectFlat(qv []float64, topK int) ([]Match, error) {
	results, err := s.registry.index.Search(qv, topK)
	if err != nil {
		return nil, err
	}
	out := make([]Match, len(results))
	for i, r := range results {
		out[i] = Match{
			Skill:    s.registry.skills[r.Position],
			Distance: r.Distance,
			Rank:     i + 1,
		}
	}
	return out, nil
}

func (s *Selector) selectGroups(qv []float64, n int) ([]GroupMatch, error) {
	results, err := s.registry.groupIndex.Search(qv, n)
	if err != nil {
		return nil, err
	}
	out := make([]GroupMatch, len(results))
	for i, r := range results {
		out[i] = GroupMatch{Group: s.registry.groups[r.Position], Distance: r.Distance, Rank: i + 1}
	}
	return out, nil
}

// selectHierarchical 只在选中的分组内检索；技能不可能越过它的分组被选中
func (s *Selector) selectHierarchical(qv []float64, topK int) ([]Match, error) {
	groups, err := s.selectGroups(qv, s.groupTopK)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		match     Match
		groupRank int
		position  int
	}
	var cands []candidate
	for _, gm := range groups {
		results, err := gm.Group.index.Search(qv, topK)
		if err != nil {
			return nil, err
		}
		for _, r := range results {
			cands = append(cands, candidate{
				match: Match{
					Skill:    gm.Group.Members[r.Position],
					Group:    gm.Group.Name,
					Distance: r.Distance,
				},
				groupRank: gm.Rank,
				position:  r.Position,
			})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.match.Distance != b.match.Distance {
			return a.match.Distance < b.match.Distance
		}
		if a.groupRank != b.groupRank {
			return a.groupRank < b.groupRank
		}
		return a.position < b.position
	})
	if len(cands) > topK {
		cands = cands[:topK]
	}

	out := make([]Match, len(cands))
	for i, c := range cands {
		c.match.Rank = i + 1
		out[i] = c.match
	}
	if len(out) == 0 {
		s.logger.Debug("no skill matched inside selected groups", zap.Int("groups", len(groups)))
	}
	return out, nil
}

func (s *Selector) record(mode string, n int, err error, d time.Duration) {
	if s.recorder == nil {
		return
	}
	if mode == "" {
		mode = "empty"
	}
	result := "hit"
	switch {
	case err != nil:
		result = "error"
	case n == 0:
		result = "empty"
	}
	s.recorder.RecordSelection(mode, result, d)
}
