package skills

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/skillflow/types"
)

// Handler 是技能的调用入口。核心只负责传入已绑定的参数，从不检查其实现。
type Handler func(ctx context.Context, args map[string]any) (any, error)

// ParamType 是参数的语义类型，取值与 JSON Schema 基本类型一致
type ParamType = types.SchemaType

const (
	ParamString  ParamType = types.SchemaTypeString
	ParamNumber  ParamType = types.SchemaTypeNumber
	ParamInteger ParamType = types.SchemaTypeInteger
	ParamBoolean ParamType = types.SchemaTypeBoolean
	ParamObject  ParamType = types.SchemaTypeObject
	ParamArray   ParamType = types.SchemaTypeArray
)

// Parameter 描述技能的一个参数
type Parameter struct {
	Name        string    `json:"name" yaml:"name"`
	Type        ParamType `json:"type" yaml:"type"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Default     any       `json:"default,omitempty" yaml:"default,omitempty"` // 模型未给出时的兜底值
	Enum        []any     `json:"enum,omitempty" yaml:"enum,omitempty"`
}

// HasDefault 报告参数是否声明了默认值
func (p Parameter) HasDefault() bool { return p.Default != nil }

// Descriptor 是一个可调用技能的静态描述。
// 注册表构建时复制一份，此后不可变；调用方拿到的指针不得修改。
type Descriptor struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Parameters  []Parameter   `json:"parameters,omitempty"`
	Handler     Handler       `json:"-"`
	Timeout     time.Duration `json:"timeout,omitempty"`    // 单次调用超时，0 表示使用全局配置
	RateLimit   float64       `json:"rate_limit,omitempty"` // 每秒调用数，0 表示不限
}

// Parameter 按名称查找参数
func (d *Descriptor) Parameter(name string) (Parameter, bool) {
	for _, p := range d.Parameters {
		if p.Name == name {
			return p, true
		}
	}
	return Parameter{}, false
}

// Schema 把参数表渲染为 JSON Schema（object，禁止额外字段）
func (d *Descriptor) Schema() *types.JSONSchema {
	s := types.NewObjectSchema()
	s.Title = d.Name
	closed := false
	s.AdditionalProperties = &closed
	for _, p := range d.Parameters {
		prop := types.NewTypedSchema(p.Type).WithDescription(p.Description)
		if len(p.Enum) > 0 {
			prop.WithEnum(p.Enum...)
		}
		if p.HasDefault() {
			prop.WithDefault(p.Default)
		}
		s.AddProperty(p.Name, prop)
		if p.Required {
			s.AddRequired(p.Name)
		}
	}
	return s
}

func (d *Descriptor) clone() *Descriptor {
	c := *d
	c.Parameters = append([]Parameter(nil), d.Parameters...)
	return &c
}

func (d *Descriptor) validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return types.NewError(types.ErrInvalidArgument, "skill name is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return types.NewError(types.ErrInvalidArgument, "skill description is required").WithSkill(d.Name)
	}
	if d.Handler == nil {
		return types.NewError(types.ErrInvalidArgument, "skill handler is required").WithSkill(d.Name)
	}
	if d.Timeout < 0 || d.RateLimit < 0 {
		return types.NewError(types.ErrInvalidArgument, "timeout and rate limit must not be negative").WithSkill(d.Name)
	}
	seen := make(map[string]struct{}, len(d.Parameters))
	for _, p := range d.Parameters {
		if p.Name == "" {
			return types.NewError(types.ErrInvalidArgument, "parameter name is required").WithSkill(d.Name)
		}
		if _, dup := seen[p.Name]; dup {
			return types.Errorf(types.ErrInvalidArgument, "duplicate parameter %q", p.Name).WithSkill(d.Name)
		}
		seen[p.Name] = struct{}{}
		if !p.Type.Valid() || p.Type == types.SchemaTypeNull {
			return types.Errorf(types.ErrInvalidArgument, "parameter %q has unsupported type %q", p.Name, p.Type).WithSkill(d.Name)
		}
	}
	return nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
