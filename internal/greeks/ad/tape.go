package ad

import "math"

const noParent = -1

type node struct {
	value    float64
	parents  [2]int32
	partials [2]float64
}

// Tape 反向模式梯度带。
// 前向求值时记录每个中间结果及其对父节点的局部偏导，Gradient 一次反向扫描即得到
// 输出对全部自变量的导数，代价与自变量个数无关。
// Tape 不是并发安全的，每次求值使用独立的 Tape。
type Tape struct {
	nodes []node
}

// NewTape 创建梯度带，capacity 为预分配节点数
func NewTape(capacity int) *Tape {
	if capacity < 16 {
		capacity = 16
	}
	return &Tape{nodes: make([]node, 0, capacity)}
}

// Var 梯度带上的节点句柄。不同 Tape 的 Var 不可混用。
type Var struct {
	tape *Tape
	idx  int32
}

// Variable 在梯度带上登记一个自变量
func (t *Tape) Variable(v float64) Var {
	return t.push(v, noParent, 0, noParent, 0)
}

// Len 已记录的节点数
func (t *Tape) Len() int { return len(t.nodes) }

// Reset 清空梯度带并保留已分配的存储，此前取得的 Var 全部失效
func (t *Tape) Reset() { t.nodes = t.nodes[:0] }

func (t *Tape) push(v float64, p0 int32, d0 float64, p1 int32, d1 float64) Var {
	t.nodes = append(t.nodes, node{
		value:    v,
		parents:  [2]int32{p0, p1},
		partials: [2]float64{d0, d1},
	})
	return Var{tape: t, idx: int32(len(t.nodes) - 1)}
}

// Adjoints 反向扫描结果，按节点索引存放伴随值
type Adjoints []float64

// Wrt 返回输出对 v 的导数
func (a Adjoints) Wrt(v Var) float64 {
	if int(v.idx) >= len(a) {
		return 0
	}
	return a[v.idx]
}

// Gradient 自 out 反向传播，返回全部节点的伴随值
func (t *Tape) Gradient(out Var) Adjoints {
	return t.GradientInto(out, nil)
}

// GradientInto 同 Gradient，容量足够时复用 buf
func (t *Tape) GradientInto(out Var, buf Adjoints) Adjoints {
	size := int(out.idx) + 1
	var adj Adjoints
	if cap(buf) >= size {
		adj = buf[:size]
		clear(adj)
	} else {
		adj = make(Adjoints, size)
	}
	adj[out.idx] = 1
	for i := out.idx; i >= 0; i-- {
		a := adj[i]
		if a == 0 {
			continue
		}
		n := &t.nodes[i]
		for k := 0; k < 2; k++ {
			if p := n.parents[k]; p != noParent {
				adj[p] += a * n.partials[k]
			}
		}
	}
	return adj
}

// Composite 记录一个局部偏导已在带外求得的节点：值为 value，对 parents[i] 的偏导为 partials[i]。
// parents 至少一个且须属于同一 Tape。
func Composite(value float64, parents []Var, partials []float64) Var {
	t := parents[0].tape
	out := t.push(value, parents[0].idx, partials[0], noParent, 0)
	for i := 1; i < len(parents); i++ {
		out = t.push(value, out.idx, 1, parents[i].idx, partials[i])
	}
	return out
}

func (x Var) val() float64 { return x.tape.nodes[x.idx].value }

func (x Var) unary(v, d float64) Var {
	return x.tape.push(v, x.idx, d, noParent, 0)
}

func (x Var) Add(y Var) Var {
	return x.tape.push(x.val()+y.val(), x.idx, 1, y.idx, 1)
}

func (x Var) Sub(y Var) Var {
	return x.tape.push(x.val()-y.val(), x.idx, 1, y.idx, -1)
}

func (x Var) Mul(y Var) Var {
	a, b := x.val(), y.val()
	return x.tape.push(a*b, x.idx, b, y.idx, a)
}

func (x Var) Div(y Var) Var {
	a, b := x.val(), y.val()
	return x.tape.push(a/b, x.idx, 1/b, y.idx, -a/(b*b))
}

func (x Var) Neg() Var { return x.unary(-x.val(), -1) }
func (x Var) AddConst(c float64) Var { return x.unary(x.val()+c, 1) }
func (x Var) MulConst(c float64) Var { return x.unary(x.val()*c, c) }
func (x Var) Const(c float64) Var { return x.tape.push(c, noParent, 0, noParent, 0) }
func (x Var) Value() float64 { return x.val() }

func (x Var) Exp() Var {
	e := math.Exp(x.val())
	return x.unary(e, e)
}

func (x Var) Log() Var {
	v := x.val()
	return x.unary(math.Log(v), 1/v)
}

func (x Var) Sqrt() Var {
	s := math.Sqrt(x.val())
	return x.unary(s, 0.5/s)
}

func (x Var) NormCDF() Var {
	v := x.val()
	return x.unary(NormCDF(v), NormPDF(v))
}

func (x Var) Softplus() Var {
	v := x.val()
	return x.unary(Softplus(v), Sigmoid(v))
}

func (x Var) Sigmoid() Var {
	s := Sigmoid(x.val())
	return x.unary(s, s*(1-s))
}
