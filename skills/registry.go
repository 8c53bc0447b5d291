package skills

import (
	"context"
	"strings"

	"github.com/BaSui01/skillflow/rag"
	"github.com/BaSui01/skillflow/types"
	"go.uber.org/zap"
)

// Mode 是注册表的检索模式
type Mode string

const (
	ModeFlat         Mode = "flat"         // 单一索引覆盖全部技能
	ModeHierarchical Mode = "hierarchical" // 先选分组，再在组内选技能
)

// GroupSpec 是构建分组时的输入
type GroupSpec struct {
	Name        string
	Description string
	Skills      []Descriptor
}

// Group 是构建完成的分组，成员只属于本组
type Group struct {
	Name        string
	Description string
	Members     []*Descriptor

	index  *rag.FlatIndex
	byName map[string]*Descriptor
}

// Registry 保存技能描述与向量索引。构建完成后只读，可被并发查询。
// 零值和 nil 都是合法的空注册表。
type Registry struct {
	mode Mode
	dim  int

	skills  []*Descriptor
	groupOf map[*Descriptor]*Group
	byName  map[string]*Descriptor // 小写名称 -> 注册顺序中的第一个

	index *rag.FlatIndex // flat

	groups     []*Group // hierarchical
	groupIndex *rag.FlatIndex
	groupByKey map[string]*Group
}

type registryOptions struct {
	logger *zap.Logger
}

// RegistryOption 配置注册表构建
type RegistryOption func(*registryOptions)

// WithRegistryLogger 设置构建日志
func WithRegistryLogger(logger *zap.Logger) RegistryOption {
	return func(o *registryOptions) { o.logger = logger }
}

func buildOptions(opts []RegistryOption) registryOptions {
	o := registryOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	o.logger = o.logger.With(zap.String("component", "skill_registry"))
	return o
}

// NewFlatRegistry 用一组技能构建 flat 注册表。
// 名称在全局范围内大小写不敏感地唯一；每个描述只嵌入一次。
func NewFlatRegistry(ctx context.Context, embedder Embedder, descriptors []Descriptor, opts ...RegistryOption) (*Registry, error) {
	o := buildOptions(opts)
	if len(descriptors) == 0 {
		return nil, types.NewError(types.ErrEmptyRegistry, "flat registry requires at least one skill")
	}

	r := &Registry{
		mode:    ModeFlat,
		groupOf: make(map[*Descriptor]*Group),
		byName:  make(map[string]*Descriptor, len(descriptors)),
	}
	texts := make([]string, 0, len(descriptors))
	for i := range descriptors {
		d := descriptors[i].clone()
		if err := d.validate(); err != nil {
			return nil, err
		}
		key := nameKey(d.Name)
		if _, dup := r.byName[key]; dup {
			return nil, types.Errorf(types.ErrDuplicateSkillName, "duplicate skill name %q", d.Name).WithSkill(d.Name)
		}
		r.byName[key] = d
		r.skills = append(r.skills, d)
		texts = append(texts, d.Description)
	}

	vecs, dim, err := embedDocuments(ctx, embedder, texts, 0)
	if err != nil {
		return nil, err
	}
	idx, err := rag.NewFlatIndex(dim)
	if err != nil {
		return nil, err
	}
	if err := idx.Add(vecs...); err != nil {
		return nil, err
	}
	r.dim, r.index = dim, idx

	o.logger.Info("flat registry built",
		zap.Int("skills", len(r.skills)),
		zap.Int("dimension", dim))
	return r, nil
}

// NewHierarchicalRegistry 用分组构建两级注册表。
// 分组名全局唯一；技能名只需在组内唯一；空分组合法。
func NewHierarchicalRegistry(ctx context.Context, embedder Embedder, specs []GroupSpec, opts ...RegistryOption) (*Registry, error) {
	o := buildOptions(opts)
	if len(specs) == 0 {
		return nil, types.NewError(types.ErrEmptyRegistry, "hierarchical registry requires at least one group")
	}

	r := &Registry{
		mode:       ModeHierarchical,
		groupOf:    make(map[*Descriptor]*Group),
		byName:     make(map[string]*Descriptor),
		groupByKey: make(map[string]*Group, len(specs)),
	}

	groupTexts := make([]string, 0, len(specs))
	for _, spec := range specs {
		if strings.TrimSpace(spec.Name) == "" || strings.TrimSpace(spec.Description) == "" {
			return nil, types.NewError(types.ErrInvalidArgument, "group name and description are required")
		}
		key := nameKey(spec.Name)
		if _, dup := r.groupByKey[key]; dup {
			return nil, types.Errorf(types.ErrDuplicateGroupName, "duplicate group name %q", spec.Name)
		}
		g := &Group{
			Name:        spec.Name,
			Description: spec.Description,
			byName:      make(map[string]*Descriptor, len(spec.Skills)),
		}
		for i := range spec.Skills {
			d := spec.Skills[i].clone()
			if err := d.validate(); err != nil {
				return nil, err
			}
			skillKey := nameKey(d.Name)
			if _, dup := g.byName[skillKey]; dup {
				return nil, types.Errorf(types.ErrDuplicateSkillName,
					"duplicate skill name %q in group %q", d.Name, spec.Name).WithSkill(d.Name)
			}
			g.byName[skillKey] = d
			g.Members = append(g.Members, d)
			r.groupOf[d] = g
			r.skills = append(r.skills, d)
			if _, seen := r.byName[skillKey]; !seen {
				r.byName[skillKey] = d
			}
		}
		r.groupByKey[key] = g
		r.groups = append(r.groups, g)
		groupTexts = append(groupTexts, g.Description)
	}

	groupVecs, dim, err := embedDocuments(ctx, embedder, groupTexts, 0)
	if err != nil {
		return nil, err
	}
	if r.groupIndex, err = rag.NewFlatIndex(dim); err != nil {
		return nil, err
	}
	if err := r.groupIndex.Add(groupVecs...); err != nil {
		return nil, err
	}

	for _, g := range r.groups {
		texts := make([]string, len(g.Members))
		for i, d := range g.Members {
			texts[i] = d.Description
		}
		vecs, _, err := embedDocuments(ctx, embedder, texts, dim)
		if err != nil {
			return nil, err
		}
		if g.index, err = rag.NewFlatIndex(dim); err != nil {
			return nil, err
		}
		if err := g.index.Add(vecs...); err != nil {
			return nil, err
		}
	}
	r.dim = dim

	o.logger.Info("hierarchical registry built",
		zap.Int("groups", len(r.groups)),
		zap.Int("skills", len(r.skills)),
		zap.Int("dimension", dim))
	return r, nil
}

// Mode 返回检索模式；空注册表返回空字符串
func (r *Registry) Mode() Mode {
	if r == nil {
		return ""
	}
	return r.mode
}

// Len 返回技能总数
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.skills)
}

// Dimension 返回嵌入维度
func (r *Registry) Dimension() int {
	if r == nil {
		return 0
	}
	return r.dim
}

// Skills 按注册顺序返回全部技能（分层模式下按分组顺序展开）
func (r *Registry) Skills() []*Descriptor {
	if r == nil {
		return nil
	}
	return append([]*Descriptor(nil), r.skills...)
}

// Groups 返回全部分组；flat 模式返回 nil
func (r *Registry) Groups() []*Group {
	if r == nil {
		return nil
	}
	return append([]*Group(nil), r.groups...)
}

// Lookup 按名称大小写不敏感地查找技能，返回注册顺序中的第一个匹配
func (r *Registry) Lookup(name string) (*Descriptor, bool) {
	if r == nil || r.byName == nil {
		return nil, false
	}
	d, ok := r.byName[nameKey(name)]
	return d, ok
}

// LookupInGroup 在指定分组内查找技能
func (r *Registry) LookupInGroup(group, name string) (*Descriptor, bool) {
	if r == nil || r.groupByKey == nil {
		return nil, false
	}
	g, ok := r.groupByKey[nameKey(group)]
	if !ok {
		return nil, false
	}
	d, ok := g.byName[nameKey(name)]
	return d, ok
}

// GroupOf 返回技能所属分组名；flat 模式返回空字符串
func (r *Registry) GroupOf(d *Descriptor) string {
	if r == nil {
		return ""
	}
	if g, ok := r.groupOf[d]; ok {
		return g.Name
	}
	return ""
}

// Contains 报告分组是否包含该技能
func (g *Group) Contains(d *Descriptor) bool {
	for _, m := range g.Members {
		if m == d {
			return true
		}
	}
	return false
}
