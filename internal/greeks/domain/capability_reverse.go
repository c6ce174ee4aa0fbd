//go:build !noreverse

package domain

// ReverseModeCompiled 反向模式是否编译进当前二进制
func ReverseModeCompiled() bool { return true }
