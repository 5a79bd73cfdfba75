package hook

import "sync/atomic"

func incInDetour(r *record) { atomic.AddInt32(&r.inDetour, 1) }
func decInDetour(r *record) { atomic.AddInt32(&r.inDetour, -1) }
func loadInDetour(r *record) int32 { return atomic.LoadInt32(&r.inDetour) }
