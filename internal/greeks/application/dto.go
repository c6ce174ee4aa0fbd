package application

import (
	"github.com/wyfcoding/greeksengine/internal/greeks/domain"
	"github.com/wyfcoding/greeksengine/internal/greeks/infrastructure/kernel"
)

// ConfigOverrides 请求级配置覆盖，未设置的字段沿用服务配置
type ConfigOverrides struct {
	Mode             *string  `json:"mode,omitempty" msgpack:"mode,omitempty"`
	SpotBump         *float64 `json:"spot_bump,omitempty" msgpack:"spot_bump,omitempty"`
	VolBump          *float64 `json:"vol_bump,omitempty" msgpack:"vol_bump,omitempty"`
	TimeBump         *float64 `json:"time_bump,omitempty" msgpack:"time_bump,omitempty"`
	RateBump         *float64 `json:"rate_bump,omitempty" msgpack:"rate_bump,omitempty"`
	Tolerance        *float64 `json:"tolerance,omitempty" msgpack:"tolerance,omitempty"`
	Floor            *float64 `json:"floor,omitempty" msgpack:"floor,omitempty"`
	Seed             *uint64  `json:"seed,omitempty" msgpack:"seed,omitempty"`
	SmoothingEpsilon *float64 `json:"smoothing_epsilon,omitempty" msgpack:"smoothing_epsilon,omitempty"`
}

// ComputeCommand 单笔希腊字母计算请求
type ComputeCommand struct {
	RequestID     string           `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	Kernel        kernel.Spec      `json:"kernel" msgpack:"kernel"`
	Params        domain.Params    `json:"params" msgpack:"params"`
	Sensitivities []string         `json:"sensitivities" msgpack:"sensitivities"`
	Config        *ConfigOverrides `json:"config,omitempty" msgpack:"config,omitempty"`
}

// ComputeResponse 单笔计算响应
type ComputeResponse struct {
	RequestID string               `json:"request_id" msgpack:"request_id"`
	Cached    bool                 `json:"cached" msgpack:"cached"`
	Result    *domain.GreeksResult `json:"result" msgpack:"result"`
}

// VerifyCommand 交叉校验请求
type VerifyCommand struct {
	RequestID     string           `json:"request_id,omitempty" msgpack:"request_id,omitempty"`
	Kernel        kernel.Spec      `json:"kernel" msgpack:"kernel"`
	Params        domain.Params    `json:"params" msgpack:"params"`
	Sensitivities []string         `json:"sensitivities" msgpack:"sensitivities"`
	Config        *ConfigOverrides `json:"config,omitempty" msgpack:"config,omitempty"`
}

// VerifyResponse 交叉校验响应
type VerifyResponse struct {
	RequestID string                     `json:"request_id" msgpack:"request_id"`
	Report    *domain.VerificationReport `json:"report" msgpack:"report"`
}

// TradeDTO 组合中的一笔交易
type TradeDTO struct {
	ID           string        `json:"id" msgpack:"id"`
	NettingSetID string        `json:"netting_set_id" msgpack:"netting_set_id"`
	Kernel       kernel.Spec   `json:"kernel" msgpack:"kernel"`
	Params       domain.Params `json:"params" msgpack:"params"`
}

// PortfolioCommand 组合计算请求
type PortfolioCommand struct {
	RunID         string           `json:"run_id,omitempty" msgpack:"run_id,omitempty"`
	Trades        []TradeDTO       `json:"trades" msgpack:"trades"`
	Sensitivities []string         `json:"sensitivities" msgpack:"sensitivities"`
	Config        *ConfigOverrides `json:"config,omitempty" msgpack:"config,omitempty"`
	Workers       int              `json:"workers,omitempty" msgpack:"workers,omitempty"`
	BudgetMillis  int64            `json:"budget_ms,omitempty" msgpack:"budget_ms,omitempty"`
}
