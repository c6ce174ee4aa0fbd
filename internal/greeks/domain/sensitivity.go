// Package domain 希腊字母计算核心的领域模型：敏感度、配置、结果、定价契约与三种求导策略
package domain

import (
	"fmt"
	"strings"
)

// Sensitivity 希腊字母（封闭集合）
type Sensitivity uint8

const (
	Delta Sensitivity = iota // ∂V/∂S
	Gamma                    // ∂²V/∂S²
	Vega                     // ∂V/∂σ
	Theta                    // ∂V/∂t（日历时间）
	Rho                      // ∂V/∂r
	Vanna                    // ∂²V/∂S∂σ
	Volga                    // ∂²V/∂σ²

	numSensitivities = iota
)

// AllSensitivities 全部希腊字母，按规范顺序排列
var AllSensitivities = []Sensitivity{Delta, Gamma, Vega, Theta, Rho, Vanna, Volga}

var sensitivityNames = [numSensitivities]string{"delta", "gamma", "vega", "theta", "rho", "vanna", "volga"}

func (s Sensitivity) String() string {
	if int(s) < numSensitivities {
		return sensitivityNames[s]
	}
	return fmt.Sprintf("sensitivity(%d)", uint8(s))
}

// Valid 是否属于封闭集合
func (s Sensitivity) Valid() bool { return int(s) < numSensitivities }

// SecondOrder 是否为二阶希腊字母
func (s Sensitivity) SecondOrder() bool {
	return s == Gamma || s == Vanna || s == Volga
}

// Dependency 二阶希腊字母所细化的一阶希腊字母
func (s Sensitivity) Dependency() (Sensitivity, bool) {
	switch s {
	case Gamma:
		return Delta, true
	case Vanna, Volga:
		return Vega, true
	default:
		return 0, false
	}
}

// ParseSensitivity 解析名称（大小写不敏感）
func ParseSensitivity(name string) (Sensitivity, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range sensitivityNames {
		if candidate == n {
			return Sensitivity(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSensitivity, name)
}

// ParseSensitivities 解析名称列表
func ParseSensitivities(names []string) ([]Sensitivity, error) {
	out := make([]Sensitivity, 0, len(names))
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		s, err := ParseSensitivity(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// MarshalText 以名称序列化
func (s Sensitivity) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownSensitivity, uint8(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText 从名称反序列化
func (s *Sensitivity) UnmarshalText(text []byte) error {
	v, err := ParseSensitivity(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// SensitivitySet 希腊字母位集合
type SensitivitySet uint16

// NewSensitivitySet 由列表构造集合，重复项被合并
func NewSensitivitySet(list ...Sensitivity) SensitivitySet {
	var set SensitivitySet
	for _, s := range list {
		set = set.With(s)
	}
	return set
}

func (set SensitivitySet) Has(s Sensitivity) bool {
	return s.Valid() && set&(1<<s) != 0
}

func (set SensitivitySet) With(s Sensitivity) SensitivitySet {
	if !s.Valid() {
		return set
	}
	return set | 1<<s
}

func (set SensitivitySet) Union(other SensitivitySet) SensitivitySet { return set | other }

func (set SensitivitySet) Empty() bool { return set == 0 }

// Len 集合元素个数
func (set SensitivitySet) Len() int {
	n := 0
	for _, s := range AllSensitivities {
		if set.Has(s) {
			n++
		}
	}
	return n
}

// List 按规范顺序返回集合元素
func (set SensitivitySet) List() []Sensitivity {
	out := make([]Sensitivity, 0, set.Len())
	for _, s := range AllSensitivities {
		if set.Has(s) {
			out = append(out, s)
		}
	}
	return out
}

// FirstOrder 集合中的一阶希腊字母
func (set SensitivitySet) FirstOrder() SensitivitySet {
	var out SensitivitySet
	for _, s := range set.List() {
		if !s.SecondOrder() {
			out = out.With(s)
		}
	}
	return out
}

// SecondOrder 集合中的二阶希腊字母
func (set SensitivitySet) SecondOrder() SensitivitySet {
	return set &^ set.FirstOrder()
}

// WithDependencies 补齐二阶希腊字母所依赖的一阶希腊字母
func (set SensitivitySet) WithDependencies() SensitivitySet {
	out := set
	for _, s := range set.List() {
		if dep, ok := s.Dependency(); ok {
			out = out.With(dep)
		}
	}
	return out
}

// ValidateRequest 校验请求集合：未知希腊字母或缺少依赖均为配置错误
func ValidateRequest(requested []Sensitivity) (SensitivitySet, error) {
	for _, s := range requested {
		if !s.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownSensitivity, uint8(s))
		}
	}
	set := NewSensitivitySet(requested...)
	for _, s := range set.List() {
		if dep, ok := s.Dependency(); ok && !set.Has(dep) {
			return 0, fmt.Errorf("%w: %s requires %s", ErrMissingDependency, s, dep)
		}
	}
	return set, nil
}

// Method 求导方式（封闭的标签变体）
type Method uint8

const (
	MethodBump    Method = iota // 有限差分重估
	MethodReverse               // 反向模式自动微分
	MethodForward               // 前向模式超对偶数自动微分
)

var methodNames = [...]string{"bump", "reverse", "forward"}

func (m Method) String() string {
	if int(m) < len(methodNames) {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

// Valid 是否属于封闭集合
func (m Method) Valid() bool { return int(m) < len(methodNames) }

// ParseMethod 解析求导方式名称，空串视为 bump
func ParseMethod(name string) (Method, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return MethodBump, nil
	}
	for i, candidate := range methodNames {
		if candidate == n {
			return Method(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
}

// MarshalText 以名称序列化
func (m Method) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMethod, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText 从名称反序列化
func (m *Method) UnmarshalText(text []byte) error {
	v, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
