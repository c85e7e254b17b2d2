package registry

import (
	"container/list"
	"time"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
)

type queueEntry struct {
	bucket     model.Bucket
	elem       *list.Element
	enqueuedAt time.Time
}

// QueueSet is the four FIFO waiting pools (any/male/female/other). FIFO keeps
// pairing fair: the longest waiter is matched first. A side index from
// connection_id to list node gives O(1) removal.
//
// Not safe for concurrent use; the matchmaker serializes access.
type QueueSet struct {
	pools map[model.Bucket]*list.List
	index map[uuid.UUID]*queueEntry
}

func NewQueueSet() *QueueSet {
	q := &QueueSet{
		pools: make(map[model.Bucket]*list.List, len(model.Buckets)),
		index: make(map[uuid.UUID]*queueEntry),
	}
	for _, b := range model.Buckets {
		q.pools[b] = list.New()
	}
	return q
}

// Enqueue inserts the user into the pool named by its queueing bucket.
// Idempotent: a connection already waiting anywhere is left where it is.
func (q *QueueSet) Enqueue(u *model.User) {
	if _, ok := q.index[u.ConnID]; ok {
		return
	}
	bucket := model.QueueBucket(u.Profile)
	elem := q.pools[bucket].PushBack(u)
	q.index[u.ConnID] = &queueEntry{
		bucket:     bucket,
		elem:       elem,
		enqueuedAt: time.Now(),
	}
}

// Remove deletes the connection from whichever pool holds it, reporting
// whether it was queued at all.
func (q *QueueSet) Remove(connID uuid.UUID) bool {
	e, ok := q.index[connID]
	if !ok {
		return false
	}
	q.pools[e.bucket].Remove(e.elem)
	delete(q.index, connID)
	return true
}

// Scan walks the given pools in order, oldest waiter first, removes and
// returns the first user the predicate accepts. Returns nil when no waiter is
// eligible. Eligibility itself belongs to the matcher; the queue only owns
// ordering and membership.
func (q *QueueSet) Scan(order []model.Bucket, eligible func(*model.User) bool) *model.User {
	for _, b := range order {
		for elem := q.pools[b].Front(); elem != nil; elem = elem.Next() {
			w := elem.Value.(*model.User)
			if !eligible(w) {
				continue
			}
			q.pools[b].Remove(elem)
			delete(q.index, w.ConnID)
			return w
		}
	}
	return nil
}

// Contains reports whether the connection is waiting in any pool.
func (q *QueueSet) Contains(connID uuid.UUID) bool {
	_, ok := q.index[connID]
	return ok
}

// Bucket returns the pool currently holding the connection.
func (q *QueueSet) Bucket(connID uuid.UUID) (model.Bucket, bool) {
	e, ok := q.index[connID]
	if !ok {
		return "", false
	}
	return e.bucket, true
}

// WaitingSince reports how long the connection has been queued.
func (q *QueueSet) WaitingSince(connID uuid.UUID) (time.Time, bool) {
	e, ok := q.index[connID]
	if !ok {
		return time.Time{}, false
	}
	return e.enqueuedAt, true
}

// Depths counts waiters per pool for diagnostics.
func (q *QueueSet) Depths() map[model.Bucket]int {
	d := make(map[model.Bucket]int, len(model.Buckets))
	for _, b := range model.Buckets {
		d[b] = q.pools[b].Len()
	}
	return d
}

// Len is the total number of waiters across all pools.
func (q *QueueSet) Len() int { return len(q.index) }
