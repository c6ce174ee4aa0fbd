package domain

import (
	"context"
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// ResultCache 计算结果缓存。同一 (内核, 配置, 参数, 请求集合) 的结果逐位可复现，因此可以直接复用。
type ResultCache interface {
	// Get 返回缓存的结果，第二个返回值表示是否命中
	Get(ctx context.Context, key string) (*GreeksResult, bool, error)
	// Put 写入结果
	Put(ctx context.Context, key string, result *GreeksResult) error
}

// CacheKey 计算结果缓存键。定价调用未实现 Keyed 时返回 false，此时结果不可缓存。
func CacheKey(cfg GreeksConfig, call PricingCall, params Params, requested SensitivitySet) (string, bool) {
	keyed, ok := call.(Keyed)
	if !ok {
		return "", false
	}
	kernel := keyed.Key()
	if kernel == "" {
		return "", false
	}

	d := xxhash.New()
	var buf [8]byte
	putU64 := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }

	_, _ = d.WriteString(kernel)
	_, _ = d.Write([]byte{0})

	spec := cfg.Spec()
	putU64(uint64(spec.Mode))
	putF64(spec.Bumps.SpotRelative)
	putF64(spec.Bumps.Vol)
	putF64(spec.Bumps.Time)
	putF64(spec.Bumps.Rate)
	putF64(spec.Tolerance)
	putF64(spec.SmoothingEpsilon)
	putU64(spec.Seed)
	// 实际使用的求导方式取决于运行时能力
	method, _ := ResolveMethod(cfg, call)
	putU64(uint64(method))

	putF64(params.Spot)
	putF64(params.Volatility)
	putF64(params.Maturity)
	putF64(params.Rate)
	putF64(params.Dividend)

	putU64(uint64(requested))
	return strconv.FormatUint(d.Sum64(), 16), true
}
