//go:build noreverse

package domain

// ReverseModeCompiled 以 noreverse 标签构建时反向模式不可用
func ReverseModeCompiled() bool { return false }
