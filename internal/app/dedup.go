package app

import lru "github.com/hashicorp/golang-lru/v2"

// DefaultDedupWindow is how many recent event keys are remembered.
const DefaultDedupWindow = 4096

// dedupWindow remembers the most recent event keys; the oldest are forgotten first.
type dedupWindow struct {
	keys *lru.Cache[string, struct{}]
}

func newDedupWindow(size int) *dedupWindow {
	if size <= 0 {
		size = DefaultDedupWindow
	}
	keys, err := lru.New[string, struct{}](size)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &dedupWindow{keys: keys}
}

// seenBefore records key and reports whether it was already in the window.
func (d *dedupWindow) seenBefore(key string) bool {
	ok, _ := d.keys.ContainsOrAdd(key, struct{}{})
	return ok
}
