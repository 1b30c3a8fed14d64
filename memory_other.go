//go:build !linux

package zegemm

// getSystemMemory returns total system memory in bytes
func getSystemMemory() uint64 {
	return defaultSystemMemory
}
