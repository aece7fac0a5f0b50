package h2engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStreamTableInsertFindRemove(t *testing.T) {
	st := newStreamTable()
	assert.Equal(t, 0, st.len())

	s := newStream(1)
	st.insert(s)
	assert.Equal(t, 1, st.len())
	assert.Same(t, s, st.find(1))
	assert.Nil(t, st.find(3))

	st.remove(1)
	assert.Equal(t, 0, st.len())
	assert.Nil(t, st.find(1))
}

func TestStreamEffectiveSendWindow(t *testing.T) {
	s := newStream(1)
	s.sendWindow = -100
	assert.Equal(t, int64(65435), s.sendEffectiveWindow(65535))
}

func TestStreamClosedRequiresBothHalves(t *testing.T) {
	s := newStream(1)
	assert.False(t, s.closed())
	s.rState = halfClosed
	assert.False(t, s.closed())
	s.wState = halfClosed
	assert.True(t, s.closed())
}

func TestResetHistoryRecordAndFind(t *testing.T) {
	var h resetHistory

	_, ok := h.find(7)
	assert.False(t, ok)

	h.record(7, true)
	entry, ok := h.find(7)
	assert.True(t, ok)
	assert.True(t, entry.wasInHeaders)
}

func TestResetHistoryWrapsAfterCapacity(t *testing.T) {
	var h resetHistory

	for i := uint32(1); i <= resetHistorySize; i++ {
		h.record(i, false)
	}
	_, ok := h.find(1)
	assert.True(t, ok)

	// one more record evicts the oldest entry (id 1).
	h.record(resetHistorySize+1, false)
	_, ok = h.find(1)
	assert.False(t, ok)

	_, ok = h.find(resetHistorySize + 1)
	assert.True(t, ok)
}
