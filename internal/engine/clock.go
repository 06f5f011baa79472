package engine

import "time"

// nowNs returns a monotonic nanosecond reading used to stamp layer-book LRU
// timestamps; separated out so tests can see it's the only wall-clock touch
// point in this package.
func nowNs() int64 { return time.Now().UnixNano() }
