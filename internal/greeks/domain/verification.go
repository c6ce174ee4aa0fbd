package domain

import (
	"context"
	"fmt"
	"math"
)

// Compare 比较两个数值：|a−b| / max(|a|, |b|, floor) ≤ tol。
// floor 避免在接近 0 的希腊字母（如深度虚值 Delta）上除以极小数产生虚假的不一致。
func Compare(a, b, tol, floor float64) (absDiff, relDiff float64, pass bool) {
	absDiff = math.Abs(a - b)
	denom := math.Max(math.Max(math.Abs(a), math.Abs(b)), floor)
	switch {
	case absDiff == 0:
		relDiff = 0
	case denom > 0:
		relDiff = absDiff / denom
	default:
		relDiff = math.Inf(1)
	}
	if math.IsNaN(absDiff) {
		return absDiff, math.NaN(), false
	}
	return absDiff, relDiff, relDiff <= tol
}

// VerificationEntry 单个希腊字母的交叉校验结果
type VerificationEntry struct {
	Sensitivity     Sensitivity `json:"sensitivity" msgpack:"sensitivity"`
	PrimaryMethod   Method      `json:"primary_method" msgpack:"primary_method"`
	SecondaryMethod Method      `json:"secondary_method" msgpack:"secondary_method"`
	Primary         float64     `json:"primary" msgpack:"primary"`
	Secondary       float64     `json:"secondary" msgpack:"secondary"`
	AbsDiff         float64     `json:"abs_diff" msgpack:"abs_diff"`
	RelDiff         float64     `json:"rel_diff" msgpack:"rel_diff"`
	Pass            bool        `json:"pass" msgpack:"pass"`
	Unverified      bool        `json:"unverified,omitempty" msgpack:"unverified,omitempty"`
	Degraded        bool        `json:"degraded,omitempty" msgpack:"degraded,omitempty"`
	Reason          string      `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// VerificationReport 交叉校验报告。不一致只被报告，是否阻断由下游策略决定。
type VerificationReport struct {
	Price     float64             `json:"price" msgpack:"price"`
	Tolerance float64             `json:"tolerance" msgpack:"tolerance"`
	Floor     float64             `json:"floor" msgpack:"floor"`
	Entries   []VerificationEntry `json:"entries" msgpack:"entries"`
	Passed    bool                `json:"passed" msgpack:"passed"`
}

// Entry 查找某个希腊字母的校验结果
func (r *VerificationReport) Entry(s Sensitivity) (VerificationEntry, bool) {
	for _, e := range r.Entries {
		if e.Sensitivity == s {
			return e, true
		}
	}
	return VerificationEntry{}, false
}

// Mismatches 未通过的条目，包括无法独立校验的条目
func (r *VerificationReport) Mismatches() []VerificationEntry {
	var out []VerificationEntry
	for _, e := range r.Entries {
		if !e.Pass {
			out = append(out, e)
		}
	}
	return out
}

// Verifier 用两条独立的求导路径计算同一组希腊字母并比较。
// 一阶：反向模式（主）对前向模式（副）；二阶：bump（主）对前向模式二阶导数（副）。
type Verifier struct {
	engine *Engine
}

func NewVerifier(engine *Engine) *Verifier {
	return &Verifier{engine: engine}
}

func (v *Verifier) Verify(ctx context.Context, cfg GreeksConfig, call PricingCall, params Params, requested ...Sensitivity) (*VerificationReport, error) {
	set, err := ValidateRequest(requested)
	if err != nil {
		return nil, err
	}
	first := set.FirstOrder()
	second := set.SecondOrder()

	secondary, err := v.engine.Compute(ctx, cfg.WithMode(MethodForward), call, params, set.WithDependencies().List()...)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		Price:     secondary.Price(),
		Tolerance: cfg.Tolerance(),
		Floor:     cfg.Floor(),
		Passed:    true,
	}

	primaries := make(map[Sensitivity]*GreeksResult, set.Len())
	if !first.Empty() {
		res, err := v.engine.Compute(ctx, cfg.WithMode(MethodReverse), call, params, first.List()...)
		if err != nil {
			return nil, err
		}
		for _, s := range first.List() {
			primaries[s] = res
		}
	}
	if !second.Empty() {
		res, err := v.engine.Compute(ctx, cfg.WithMode(MethodBump), call, params, second.WithDependencies().List()...)
		if err != nil {
			return nil, err
		}
		for _, s := range second.List() {
			primaries[s] = res
		}
	}

	for _, s := range set.List() {
		primary := primaries[s]
		entry := VerificationEntry{
			Sensitivity:     s,
			PrimaryMethod:   primary.Method(),
			SecondaryMethod: secondary.Method(),
			Degraded:        primary.Degraded() || secondary.Degraded(),
		}
		a, okA := primary.Get(s)
		b, okB := secondary.Get(s)
		switch {
		case !okA:
			entry.Reason = fmt.Sprintf("%s value unavailable", primary.Method())
		case !okB:
			entry.Reason = fmt.Sprintf("%s value unavailable", secondary.Method())
		default:
			entry.Primary, entry.Secondary = a, b
			entry.AbsDiff, entry.RelDiff, entry.Pass = Compare(a, b, cfg.Tolerance(), cfg.Floor())
			if !entry.Pass {
				entry.Reason = fmt.Sprintf("relative difference %.3g exceeds tolerance %.3g", entry.RelDiff, cfg.Tolerance())
			}
		}
		// 两侧落到同一方法时没有独立校验，不能算通过
		if entry.PrimaryMethod == entry.SecondaryMethod {
			entry.Pass = false
			entry.Unverified = true
			entry.Reason = "no independent method available: both sides computed by " + entry.PrimaryMethod.String()
		}
		report.Passed = report.Passed && entry.Pass
		report.Entries = append(report.Entries, entry)
	}

	if !report.Passed {
		v.engine.logger.WarnContext(ctx, "verification mismatch",
			"mismatches", len(report.Mismatches()), "entries", len(report.Entries))
	}
	return report, nil
}
