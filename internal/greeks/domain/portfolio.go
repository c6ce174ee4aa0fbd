package domain

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DiagMixedMethods 汇总结果中的交易使用了不同的求导方式
const DiagMixedMethods = "mixed_methods"

// Trade 组合中的一笔交易
type Trade struct {
	ID           string
	NettingSetID string
	Call         PricingCall
	Params       Params
}

// ValidateTrades 校验交易标识：不可为空且不可重复，净额结算集标识不可为空
func ValidateTrades(trades []Trade) error {
	seen := make(map[string]struct{}, len(trades))
	for i, t := range trades {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: trade #%d", ErrEmptyTradeID, i)
		}
		if strings.TrimSpace(t.NettingSetID) == "" {
			return fmt.Errorf("%w: trade %s", ErrEmptyNettingSet, t.ID)
		}
		if t.Call == nil {
			return fmt.Errorf("%w: trade %s", ErrNilPricingCall, t.ID)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateTrade, t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}

// TradeStatus 单笔交易的计算状态
type TradeStatus string

const (
	TradeCompleted TradeStatus = "completed"
	TradeFailed    TradeStatus = "failed"
	TradeCancelled TradeStatus = "cancelled"
)

// TradeGreeks 单笔交易的结果，未完成的交易同样被列出，绝不静默丢弃
type TradeGreeks struct {
	TradeID      string        `json:"trade_id" msgpack:"trade_id"`
	NettingSetID string        `json:"netting_set_id" msgpack:"netting_set_id"`
	Status       TradeStatus   `json:"status" msgpack:"status"`
	Result       *GreeksResult `json:"result,omitempty" msgpack:"result,omitempty"`
	Error        string        `json:"error,omitempty" msgpack:"error,omitempty"`
	Elapsed      time.Duration `json:"elapsed_ns" msgpack:"elapsed_ns"`
}

// Accumulator 可交换、与顺序无关的累加器。
// 数值以 decimal 精确相加，因此任意完成顺序得到逐位相同的总和。
// 缺失的希腊字母只在求和时按 0 处理；任一交易存在该希腊字母时总和即存在。
type Accumulator struct {
	price    decimal.Decimal
	variance decimal.Decimal
	values   [numSensitivities]decimal.Decimal
	present  SensitivitySet
	methods  map[Method]int
	degraded bool
	count    int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{methods: make(map[Method]int, 3)}
}

func exact(v float64) (decimal.Decimal, bool) {
	if !isFinite(v) {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(v), true
}

// Add 累加一笔交易的结果
func (a *Accumulator) Add(r *GreeksResult) {
	if r == nil {
		return
	}
	if d, ok := exact(r.Price()); ok {
		a.price = a.price.Add(d)
	}
	if d, ok := exact(r.StandardError() * r.StandardError()); ok {
		a.variance = a.variance.Add(d)
	}
	for _, s := range r.Sensitivities().List() {
		v, _ := r.Get(s)
		if d, ok := exact(v); ok {
			a.values[s] = a.values[s].Add(d)
			a.present = a.present.With(s)
		}
	}
	a.methods[r.Method()]++
	a.degraded = a.degraded || r.Degraded()
	a.count++
}

// Count 已累加的结果数
func (a *Accumulator) Count() int { return a.count }

// Result 生成汇总结果，标准误差按独立误差合成为 sqrt(Σse²)
func (a *Accumulator) Result() *GreeksResult {
	b := NewResultBuilder(a.price.InexactFloat64(), math.Sqrt(a.variance.InexactFloat64())).
		Degraded(a.degraded)
	for _, s := range a.present.List() {
		b.Set(s, a.values[s].InexactFloat64())
	}

	methods := make([]Method, 0, len(a.methods))
	for m := range a.methods {
		methods = append(methods, m)
	}
	slices.Sort(methods)
	if len(methods) > 0 {
		b.Method(methods[0]).RequestedMethod(methods[0])
	}
	if len(methods) > 1 {
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = m.String()
		}
		b.Note(DiagMixedMethods, "methods used: %s", strings.Join(names, ","))
	}
	return b.Build()
}

// NettingSetAggregate 净额结算集汇总，交易按标识排序
type NettingSetAggregate struct {
	ID         string        `json:"id" msgpack:"id"`
	Trades     []TradeGreeks `json:"trades" msgpack:"trades"`
	Total      *GreeksResult `json:"total" msgpack:"total"`
	Incomplete bool          `json:"incomplete" msgpack:"incomplete"`
}

// PortfolioSummary 组合汇总，按净额结算集标识索引
type PortfolioSummary struct {
	RunID       string                          `json:"run_id" msgpack:"run_id"`
	NettingSets map[string]*NettingSetAggregate `json:"netting_sets" msgpack:"netting_sets"`
	Total       *GreeksResult                   `json:"total" msgpack:"total"`
	Incomplete  bool                            `json:"incomplete" msgpack:"incomplete"`
	Completed   int                             `json:"completed" msgpack:"completed"`
	Failed      int                             `json:"failed" msgpack:"failed"`
	Cancelled   int                             `json:"cancelled" msgpack:"cancelled"`
	Elapsed     time.Duration                   `json:"elapsed_ns" msgpack:"elapsed_ns"`
}

// NettingSetIDs 排序后的净额结算集标识
func (s *PortfolioSummary) NettingSetIDs() []string {
	ids := make([]string, 0, len(s.NettingSets))
	for id := range s.NettingSets {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Summarize 将逐笔结果归约为净额结算集与组合总和。
// 只有状态为 completed 的结果参与求和，任何未完成的交易都会使对应集合与整个组合标记为 incomplete。
func Summarize(runID string, trades []TradeGreeks) *PortfolioSummary {
	summary := &PortfolioSummary{
		RunID:       runID,
		NettingSets: make(map[string]*NettingSetAggregate),
	}
	accs := make(map[string]*Accumulator)
	total := NewAccumulator()

	for _, t := range trades {
		agg, ok := summary.NettingSets[t.NettingSetID]
		if !ok {
			agg = &NettingSetAggregate{ID: t.NettingSetID}
			summary.NettingSets[t.NettingSetID] = agg
			accs[t.NettingSetID] = NewAccumulator()
		}
		agg.Trades = append(agg.Trades, t)

		switch t.Status {
		case TradeCompleted:
			summary.Completed++
			accs[t.NettingSetID].Add(t.Result)
			total.Add(t.Result)
		case TradeFailed:
			summary.Failed++
			agg.Incomplete = true
		default:
			summary.Cancelled++
			agg.Incomplete = true
		}
	}

	for id, agg := range summary.NettingSets {
		slices.SortFunc(agg.Trades, func(a, b TradeGreeks) int { return strings.Compare(a.TradeID, b.TradeID) })
		agg.Total = accs[id].Result()
	}
	summary.Total = total.Result()
	summary.Incomplete = summary.Failed+summary.Cancelled > 0
	return summary
}
