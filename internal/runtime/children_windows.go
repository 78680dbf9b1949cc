//go:build windows

package runtime

// childrenOf is unsupported on Windows; taskkill /T handles tree teardown
// itself, so nothing here needs to enumerate descendants.
func childrenOf(pid int) []int { return nil }

func descendantsOf(pid int) []int { return nil }
