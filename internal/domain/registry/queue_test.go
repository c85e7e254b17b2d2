package registry

import (
	"testing"

	"github.com/google/uuid"
	"github.com/strangerlink/match-signaling-service/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waiter(gender model.Gender, pref model.Preference, tier model.Tier) *model.User {
	return &model.User{
		ConnID: uuid.New(),
		State:  model.Waiting,
		Profile: model.Profile{
			Username:        "u",
			Gender:          gender,
			PreferredGender: pref,
			Tier:            tier,
		},
	}
}

func anyone(*model.User) bool { return true }

func TestQueueSetFIFO(t *testing.T) {
	q := NewQueueSet()
	first := waiter(model.GenderFemale, model.PreferAny, model.TierFree)
	second := waiter(model.GenderMale, model.PreferAny, model.TierFree)

	q.Enqueue(first)
	q.Enqueue(second)

	got := q.Scan([]model.Bucket{model.BucketAny}, anyone)
	require.NotNil(t, got)
	assert.Equal(t, first.ConnID, got.ConnID, "oldest waiter is paired first")
	assert.False(t, q.Contains(first.ConnID), "scan removes the returned waiter")
	assert.True(t, q.Contains(second.ConnID))
}

func TestQueueSetBucketPlacement(t *testing.T) {
	q := NewQueueSet()

	free := waiter(model.GenderMale, model.PreferAny, model.TierFree)
	premium := waiter(model.GenderMale, model.PreferFemale, model.TierPremium)

	q.Enqueue(free)
	q.Enqueue(premium)

	b, ok := q.Bucket(free.ConnID)
	require.True(t, ok)
	assert.Equal(t, model.BucketAny, b)

	b, ok = q.Bucket(premium.ConnID)
	require.True(t, ok)
	assert.Equal(t, model.BucketFemale, b, "premium waiter sits in the pool named by its preference")
}

func TestQueueSetEnqueueIdempotent(t *testing.T) {
	q := NewQueueSet()
	u := waiter(model.GenderOther, model.PreferAny, model.TierFree)

	q.Enqueue(u)
	q.Enqueue(u)

	assert.Equal(t, 1, q.Len(), "same connection never appears in more than one pool")
	assert.Equal(t, 1, q.Depths()[model.BucketAny])
}

func TestQueueSetRemove(t *testing.T) {
	q := NewQueueSet()
	u := waiter(model.GenderFemale, model.PreferAny, model.TierFree)

	assert.False(t, q.Remove(u.ConnID), "removing an unqueued connection is a no-op")

	q.Enqueue(u)
	assert.True(t, q.Remove(u.ConnID))
	assert.False(t, q.Contains(u.ConnID))
	assert.Equal(t, 0, q.Len())
}

func TestQueueSetScanSkipsIneligible(t *testing.T) {
	q := NewQueueSet()
	blocked := waiter(model.GenderMale, model.PreferAny, model.TierFree)
	ok := waiter(model.GenderFemale, model.PreferAny, model.TierFree)

	q.Enqueue(blocked)
	q.Enqueue(ok)

	got := q.Scan([]model.Bucket{model.BucketAny}, func(w *model.User) bool {
		return w.Profile.Gender == model.GenderFemale
	})
	require.NotNil(t, got)
	assert.Equal(t, ok.ConnID, got.ConnID)
	assert.True(t, q.Contains(blocked.ConnID), "ineligible waiters keep their position")
}

func TestQueueSetScanEmpty(t *testing.T) {
	q := NewQueueSet()
	assert.Nil(t, q.Scan(model.Buckets, anyone))
}

func TestQueueSetWaitingSince(t *testing.T) {
	q := NewQueueSet()
	u := waiter(model.GenderMale, model.PreferAny, model.TierFree)

	_, ok := q.WaitingSince(u.ConnID)
	assert.False(t, ok)

	q.Enqueue(u)
	since, ok := q.WaitingSince(u.ConnID)
	require.True(t, ok)
	assert.False(t, since.IsZero())
}
