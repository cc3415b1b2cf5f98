package service

import (
	"curveStatApp/internal/domain/model"

	"github.com/gammazero/deque"
)

// tradeLedger keeps at most capacity trades, newest at the front. Pushing onto
// a full ledger drops the oldest record from the back.
// Not safe for concurrent use; TrendAggregator holds the lock.
type tradeLedger struct {
	q        deque.Deque[model.TradeRecord]
	capacity int
}

func newTradeLedger(capacity int) *tradeLedger {
	if capacity <= 0 {
		capacity = DefaultRetention
	}
	return &tradeLedger{capacity: capacity}
}

func (l *tradeLedger) push(trade model.TradeRecord) {
	l.q.PushFront(trade)
	for l.q.Len() > l.capacity {
		l.q.PopBack()
	}
}

func (l *tradeLedger) len() int {
	return l.q.Len()
}

// newest copies up to n records, newest first.
func (l *tradeLedger) newest(n int) []model.TradeRecord {
	if n > l.q.Len() {
		n = l.q.Len()
	}
	if n < 0 {
		n = 0
	}
	out := make([]model.TradeRecord, n)
	for i := 0; i < n; i++ {
		out[i] = l.q.At(i)
	}
	return out
}
