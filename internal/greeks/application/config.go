package application

import (
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/pkg/config"
)

// GreeksConfigFrom 将服务配置转换为领域配置
func GreeksConfigFrom(c config.GreeksConfig) (domain.GreeksConfig, error) {
	mode, err := domain.ParseMethod(c.Mode)
	if err != nil {
		return domain.GreeksConfig{}, err
	}
	return domain.NewGreeksConfig(domain.ConfigSpec{
		Mode: mode,
		Bumps: domain.BumpSizes{
			SpotRelative: c.SpotBump,
			Vol:          c.VolBump,
			Time:         c.TimeBump,
			Rate:         c.RateBump,
		},
		Tolerance:        c.Tolerance,
		Floor:            c.Floor,
		Seed:             c.Seed,
		SmoothingEpsilon: c.SmoothingEpsilon,
		DisableReverse:   !c.ReverseEnabled,
	})
}

// Apply 在基础配置上应用覆盖项并重新校验
func (o *ConfigOverrides) Apply(base domain.GreeksConfig) (domain.GreeksConfig, error) {
	if o == nil {
		return base, nil
	}
	spec := base.Spec()
	if o.Mode != nil {
		mode, err := domain.ParseMethod(*o.Mode)
		if err != nil {
			return domain.GreeksConfig{}, err
		}
		spec.Mode = mode
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&spec.Bumps.SpotRelative, o.SpotBump)
	set(&spec.Bumps.Vol, o.VolBump)
	set(&spec.Bumps.Time, o.TimeBump)
	set(&spec.Bumps.Rate, o.RateBump)
	set(&spec.Tolerance, o.Tolerance)
	set(&spec.Floor, o.Floor)
	set(&spec.SmoothingEpsilon, o.SmoothingEpsilon)
	if o.Seed != nil {
		spec.Seed = *o.Seed
	}
	return domain.NewGreeksConfig(spec)
}
