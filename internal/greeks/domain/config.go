package domain

import (
	"fmt"
	"math"
)

// 默认参数
const (
	DefaultSpotBump  = 0.01       // 现货相对扰动 1%
	DefaultVolBump   = 0.01       // 波动率绝对扰动 1 个百分点
	DefaultTimeBump  = 1.0 / 365  // 一个日历日
	DefaultRateBump  = 0.0001     // 1bp
	DefaultTolerance = 1e-3       // 校验相对容差
	DefaultFloor     = 1e-4       // 校验绝对下限
	DefaultSeed      = 0x5eed1e55 // 默认根种子
)

// BumpSizes 各维度扰动步长
type BumpSizes struct {
	SpotRelative float64 `json:"spot_relative" msgpack:"spot_relative"` // 现货相对比例
	Vol          float64 `json:"vol" msgpack:"vol"`                     // 波动率绝对值
	Time         float64 `json:"time" msgpack:"time"`                   // 年
	Rate         float64 `json:"rate" msgpack:"rate"`                   // 利率绝对值
}

// DefaultBumpSizes 默认扰动步长
func DefaultBumpSizes() BumpSizes {
	return BumpSizes{
		SpotRelative: DefaultSpotBump,
		Vol:          DefaultVolBump,
		Time:         DefaultTimeBump,
		Rate:         DefaultRateBump,
	}
}

// Validate 所有步长必须严格为正且有限
func (b BumpSizes) Validate() error {
	check := func(name string, v float64) error {
		if !(v > 0) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s=%v", ErrInvalidBump, name, v)
		}
		return nil
	}
	if err := check("spot_relative", b.SpotRelative); err != nil {
		return err
	}
	if err := check("vol", b.Vol); err != nil {
		return err
	}
	if err := check("time", b.Time); err != nil {
		return err
	}
	return check("rate", b.Rate)
}

// ConfigSpec GreeksConfig 的构造参数，通常从 DefaultConfigSpec 开始修改
type ConfigSpec struct {
	Mode             Method
	Bumps            BumpSizes
	Tolerance        float64
	Floor            float64
	Seed             uint64
	SmoothingEpsilon float64 // 0 表示由引擎自动选择
	DisableReverse   bool    // 运行时关闭反向模式
}

// DefaultConfigSpec 默认构造参数
func DefaultConfigSpec() ConfigSpec {
	return ConfigSpec{
		Mode:      MethodBump,
		Bumps:     DefaultBumpSizes(),
		Tolerance: DefaultTolerance,
		Floor:     DefaultFloor,
		Seed:      DefaultSeed,
	}
}

// GreeksConfig 不可变的计算配置，可在并发计算间只读共享
type GreeksConfig struct {
	mode             Method
	bumps            BumpSizes
	tolerance        float64
	floor            float64
	seed             uint64
	smoothingEpsilon float64
	reverseEnabled   bool
}

// NewGreeksConfig 校验并构造配置，非法步长或容差在任何定价调用之前即被拒绝
func NewGreeksConfig(spec ConfigSpec) (GreeksConfig, error) {
	cfg := GreeksConfig{
		mode:             spec.Mode,
		bumps:            spec.Bumps,
		tolerance:        spec.Tolerance,
		floor:            spec.Floor,
		seed:             spec.Seed,
		smoothingEpsilon: spec.SmoothingEpsilon,
		reverseEnabled:   !spec.DisableReverse,
	}
	if err := cfg.Validate(); err != nil {
		return GreeksConfig{}, err
	}
	return cfg, nil
}

// DefaultGreeksConfig 使用全部默认值的配置
func DefaultGreeksConfig() GreeksConfig {
	cfg, _ := NewGreeksConfig(DefaultConfigSpec())
	return cfg
}

// Validate 校验配置
func (c GreeksConfig) Validate() error {
	if !c.mode.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownMethod, uint8(c.mode))
	}
	if err := c.bumps.Validate(); err != nil {
		return err
	}
	if !(c.tolerance > 0) || math.IsInf(c.tolerance, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidTolerance, c.tolerance)
	}
	if !(c.floor >= 0) || math.IsInf(c.floor, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidFloor, c.floor)
	}
	if !(c.smoothingEpsilon >= 0) || math.IsInf(c.smoothingEpsilon, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidSmoothing, c.smoothingEpsilon)
	}
	return nil
}

func (c GreeksConfig) Mode() Method { return c.mode }
func (c GreeksConfig) Bumps() BumpSizes { return c.bumps }
func (c GreeksConfig) Tolerance() float64 { return c.tolerance }
func (c GreeksConfig) Floor() float64 { return c.floor }
func (c GreeksConfig) Seed() uint64 { return c.seed }
func (c GreeksConfig) SmoothingEpsilon() float64 { return c.smoothingEpsilon }
func (c GreeksConfig) ReverseEnabled() bool { return c.reverseEnabled }

// WithSeed 返回替换种子后的副本
func (c GreeksConfig) WithSeed(seed uint64) GreeksConfig {
	c.seed = seed
	return c
}

// WithMode 返回替换求导方式后的副本
func (c GreeksConfig) WithMode(m Method) GreeksConfig {
	c.mode = m
	return c
}

// Spec 还原为构造参数
func (c GreeksConfig) Spec() ConfigSpec {
	return ConfigSpec{
		Mode:             c.mode,
		Bumps:            c.bumps,
		Tolerance:        c.tolerance,
		Floor:            c.floor,
		Seed:             c.seed,
		SmoothingEpsilon: c.smoothingEpsilon,
		DisableReverse:   !c.reverseEnabled,
	}
}
