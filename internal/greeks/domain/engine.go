package domain

import (
	"context"
	"fmt"
	"log/slog"
	"math"
)

// MinSmoothingRelative 光滑参数相对现货的数值稳定下限
const MinSmoothingRelative = 1e-4

// evaluation 一次希腊字母计算的共享状态，仅在单个 goroutine 内使用
type evaluation struct {
	ctx    context.Context
	cfg    GreeksConfig
	call   PricingCall
	params Params
	seed   uint64
	set    SensitivitySet
	base   Quote
	rb     *ResultBuilder
}

// record 写入结果，非有限值转为诊断
func (ev *evaluation) record(s Sensitivity, v float64) {
	if !isFinite(v) {
		ev.rb.Diagnose(s, DiagNonFinite, "computed value %v is not finite", v)
		return
	}
	ev.rb.Set(s, v)
}

// Engine 希腊字母计算引擎，无状态，可并发使用
type Engine struct {
	logger *slog.Logger
}

// NewEngine 创建引擎，logger 为空时使用 slog.Default()
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// ChooseSmoothing 选择传入定价内核的光滑参数。
// 配置显式给出时直接使用；否则取 tolerance·spot/ln2，使 eps·ln2 的光滑偏差不超过容差，
// 并以 MinSmoothingRelative·spot 为下限保证梯度数值稳定。第二个返回值表示下限是否生效。
func ChooseSmoothing(cfg GreeksConfig, spot float64) (float64, bool) {
	if eps := cfg.SmoothingEpsilon(); eps > 0 {
		return eps, false
	}
	eps := cfg.Tolerance() * spot / math.Ln2
	if floor := MinSmoothingRelative * spot; eps < floor {
		return floor, true
	}
	return eps, false
}

// ResolveMethod 根据能力决定实际使用的求导方式，不可用时降级为 bump
func ResolveMethod(cfg GreeksConfig, call PricingCall) (Method, string) {
	switch cfg.Mode() {
	case MethodReverse:
		if !ReverseModeCompiled() {
			return MethodBump, "reverse mode not compiled into this build"
		}
		if !cfg.ReverseEnabled() {
			return MethodBump, "reverse mode disabled by configuration"
		}
		if _, ok := call.(TapePricer); !ok {
			return MethodBump, "pricing call does not support reverse mode"
		}
		return MethodReverse, ""
	case MethodForward:
		if _, ok := call.(DualPricer); !ok {
			return MethodBump, "pricing call does not support forward mode"
		}
		return MethodForward, ""
	default:
		return MethodBump, ""
	}
}

// Compute 计算希腊字母。
// 配置、请求集合或参数非法时返回错误且不做任何定价调用；基础定价失败时返回错误；
// 单个希腊字母的数值问题只会使其缺失并附带诊断。
func (e *Engine) Compute(ctx context.Context, cfg GreeksConfig, call PricingCall, params Params, requested ...Sensitivity) (*GreeksResult, error) {
	if call == nil {
		return nil, ErrNilPricingCall
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	set, err := ValidateRequest(requested)
	if err != nil {
		return nil, err
	}
	params.Smoothing = 0
	if err := params.Validate(); err != nil {
		return nil, err
	}

	eps, floored := ChooseSmoothing(cfg, params.Spot)
	params.Smoothing = eps

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base, err := safePrice(call, params, cfg.Seed())
	if err != nil {
		return nil, err
	}
	if !isFinite(base.Value) {
		return nil, fmt.Errorf("%w: base price %v is not finite", ErrPricingFailed, base.Value)
	}

	method, reason := ResolveMethod(cfg, call)
	degraded := method != cfg.Mode()

	rb := NewResultBuilder(base.Value, base.StdErr).
		Method(method).
		RequestedMethod(cfg.Mode()).
		Degraded(degraded).
		Smoothing(eps)
	if degraded {
		rb.Note(DiagFallback, "%s unavailable, fell back to %s: %s", cfg.Mode(), method, reason)
		e.logger.WarnContext(ctx, "differentiation method unavailable, falling back",
			"requested", cfg.Mode().String(), "method", method.String(), "reason", reason)
	}
	if floored {
		rb.Note(DiagSmoothingBias, "smoothing epsilon raised to stability floor %g", eps)
	}

	ev := &evaluation{
		ctx:    ctx,
		cfg:    cfg,
		call:   call,
		params: params,
		seed:   cfg.Seed(),
		set:    set.WithDependencies(),
		base:   base,
		rb:     rb,
	}

	switch method {
	case MethodReverse:
		err = newReverser(ev, call.(TapePricer)).run()
	case MethodForward:
		err = newForwarder(ev, call.(DualPricer)).run()
	default:
		err = newBumper(ev).run()
	}
	if err != nil {
		return nil, err
	}

	result := rb.Keep(set).Build()
	e.logger.DebugContext(ctx, "greeks computed",
		"method", method.String(), "degraded", degraded,
		"requested", len(requested), "present", result.Sensitivities().Len(),
		"price", result.Price(), "std_err", result.StandardError())
	return result, nil
}
