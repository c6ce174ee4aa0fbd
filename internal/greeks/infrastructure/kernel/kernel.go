// Package kernel 参考定价内核：Black-Scholes 闭式解、蒙特卡洛（欧式与障碍）与 Longstaff-Schwartz 美式期权
package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
)

// 内核类型
const (
	TypeBlackScholes = "black_scholes"
	TypeMonteCarlo   = "monte_carlo"
	TypeAmerican     = "american_lsm"
)

var (
	ErrUnknownKernel   = errors.New("unknown pricing kernel")
	ErrInvalidContract = errors.New("invalid contract terms")
)

// Spec 内核描述，供 HTTP 与命令行构造定价调用
type Spec struct {
	Type       string  `json:"type" msgpack:"type" mapstructure:"type"`
	Strike     float64 `json:"strike" msgpack:"strike" mapstructure:"strike"`
	Put        bool    `json:"put" msgpack:"put" mapstructure:"put"`
	Barrier    float64 `json:"barrier,omitempty" msgpack:"barrier,omitempty" mapstructure:"barrier"`
	BarrierUp  bool    `json:"barrier_up,omitempty" msgpack:"barrier_up,omitempty" mapstructure:"barrier_up"`
	Paths      int     `json:"paths,omitempty" msgpack:"paths,omitempty" mapstructure:"paths"`
	Steps      int     `json:"steps,omitempty" msgpack:"steps,omitempty" mapstructure:"steps"`
	Antithetic bool    `json:"antithetic,omitempty" msgpack:"antithetic,omitempty" mapstructure:"antithetic"`
	Degree     int     `json:"degree,omitempty" msgpack:"degree,omitempty" mapstructure:"degree"`
}

// New 根据描述构造定价调用
func New(spec Spec) (domain.PricingCall, error) {
	if !(spec.Strike > 0) {
		return nil, fmt.Errorf("%w: strike=%v", ErrInvalidContract, spec.Strike)
	}
	switch strings.ToLower(strings.TrimSpace(spec.Type)) {
	case "", TypeBlackScholes, "bs":
		return BlackScholes{Strike: spec.Strike, Put: spec.Put}, nil
	case TypeMonteCarlo, "mc", "barrier":
		mc := MonteCarlo{
			Strike:     spec.Strike,
			Put:        spec.Put,
			Barrier:    spec.Barrier,
			BarrierUp:  spec.BarrierUp,
			Paths:      spec.Paths,
			Steps:      spec.Steps,
			Antithetic: spec.Antithetic,
		}
		if err := mc.validate(); err != nil {
			return nil, err
		}
		return mc, nil
	case TypeAmerican, "american", "lsm":
		lsm := LongstaffSchwartz{
			Strike: spec.Strike,
			Put:    spec.Put,
			Paths:  spec.Paths,
			Steps:  spec.Steps,
			Degree: spec.Degree,
		}
		if err := lsm.validate(); err != nil {
			return nil, err
		}
		return lsm, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, spec.Type)
	}
}
