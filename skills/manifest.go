package skills

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BaSui01/skillflow/types"
	"gopkg.in/yaml.v3"
)

// HandlerTable 是处理器能力表：清单中的 handler 键在加载时解析到这里，
// 调用路径上不再有字符串到函数的查找。
type HandlerTable map[string]Handler

// Manifest 是从 YAML 加载、已解析处理器的技能清单
type Manifest struct {
	Mode   Mode
	Skills []Descriptor // flat 模式
	Groups []GroupSpec  // 分层模式
}

type manifestFile struct {
	Mode   string          `yaml:"mode"`
	Skills []manifestSkill `yaml:"skills"`
	Groups []manifestGroup `yaml:"groups"`
}

type manifestGroup struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Skills      []manifestSkill `yaml:"skills"`
}

type manifestSkill struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description"`
	Handler     string        `yaml:"handler"`
	Timeout     time.Duration `yaml:"timeout"`
	RateLimit   float64       `yaml:"rate_limit"`
	Parameters  []Parameter   `yaml:"parameters"`
}

// LoadManifest 读取 YAML 清单并用 handlers 解析处理器
func LoadManifest(path string, handlers HandlerTable) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skill manifest: %w", err)
	}
	return ParseManifest(data, handlers)
}

// ParseManifest 解析 YAML 清单。未知的 handler 键在这里即报 InvalidArgument。
func ParseManifest(data []byte, handlers HandlerTable) (*Manifest, error) {
	var f manifestFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, types.NewError(types.ErrInvalidArgument, "parse skill manifest").WithCause(err)
	}

	m := &Manifest{Mode: Mode(strings.ToLower(strings.TrimSpace(f.Mode)))}
	for _, s := range f.Skills {
		d, err := s.resolve(handlers)
		if err != nil {
			return nil, err
		}
		m.Skills = append(m.Skills, d)
	}
	for _, g := range f.Groups {
		spec := GroupSpec{Name: g.Name, Description: g.Description}
		for _, s := range g.Skills {
			d, err := s.resolve(handlers)
			if err != nil {
				return nil, err
			}
			spec.Skills = append(spec.Skills, d)
		}
		m.Groups = append(m.Groups, spec)
	}

	switch m.Mode {
	case "":
		m.Mode = ModeFlat
		if len(m.Groups) > 0 {
			m.Mode = ModeHierarchical
		}
	case ModeFlat, ModeHierarchical:
	default:
		return nil, types.Errorf(types.ErrInvalidArgument, "unknown registry mode %q", f.Mode)
	}
	if m.Mode == ModeHierarchical && len(m.Skills) > 0 {
		return nil, types.NewError(types.ErrInvalidArgument, "hierarchical manifest must declare skills inside groups")
	}
	return m, nil
}

func (s manifestSkill) resolve(handlers HandlerTable) (Descriptor, error) {
	key := s.Handler
	if key == "" {
		key = s.Name
	}
	h, ok := handlers[key]
	if !ok || h == nil {
		return Descriptor{}, types.Errorf(types.ErrInvalidArgument, "unknown handler %q", key).WithSkill(s.Name)
	}
	return Descriptor{
		Name:        s.Name,
		Description: s.Description,
		Parameters:  s.Parameters,
		Handler:     h,
		Timeout:     s.Timeout,
		RateLimit:   s.RateLimit,
	}, nil
}

// WithMode 返回切换检索模式后的清单副本。
// 分组清单切到 flat 时按分组顺序展开全部技能；flat 清单无法切到分层模式。
func (m *Manifest) WithMode(mode Mode) (*Manifest, error) {
	if mode == "" || mode == m.Mode {
		return m, nil
	}
	switch mode {
	case ModeFlat:
		out := &Manifest{Mode: ModeFlat, Skills: append([]Descriptor(nil), m.Skills...)}
		for _, g := range m.Groups {
			out.Skills = append(out.Skills, g.Skills...)
		}
		return out, nil
	case ModeHierarchical:
		return nil, types.NewError(types.ErrInvalidArgument, "hierarchical mode requires a manifest with groups")
	default:
		return nil, types.Errorf(types.ErrInvalidArgument, "unknown registry mode %q", mode)
	}
}

// Build 按清单模式构建注册表
func (m *Manifest) Build(ctx context.Context, embedder Embedder, opts ...RegistryOption) (*Registry, error) {
	if m.Mode == ModeHierarchical {
		return NewHierarchicalRegistry(ctx, embedder, m.Groups, opts...)
	}
	return NewFlatRegistry(ctx, embedder, m.Skills, opts...)
}
