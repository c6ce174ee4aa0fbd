package domain

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// PurposeGreeks 组合计算中单笔交易求导所用种子的用途标签
const PurposeGreeks = "greeks"

// DeriveSeed 由根种子、交易标识与用途标签派生独立种子，结果与调用顺序无关
func DeriveSeed(root uint64, tradeID, purpose string) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], root)

	d := xxhash.New()
	_, _ = d.Write(buf[:])
	_, _ = d.WriteString(tradeID)
	_, _ = d.Write([]byte{0})
	_, _ = d.WriteString(purpose)
	return d.Sum64()
}
