package engine

import (
	"testing"

	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listeningThenReading() []model.DisplayItem {
	return []model.DisplayItem{
		partItem(1, 0),
		questionItem(1, 1, 1, 10),
		groupItem(50, 3, 25, 2, 2, 3),
		partItem(5, 0),
		questionItem(5, 5, 5, 0),
		questionItem(6, 6, 5, 0),
	}
}

func TestSequencer_CatchesUpAfterSeek(t *testing.T) {
	items := []model.DisplayItem{
		questionItem(1, 1, 1, 0),
		questionItem(2, 2, 1, 10),
		questionItem(3, 3, 2, 25),
		questionItem(4, 4, 5, 0),
	}
	seq := NewSequencer(items)
	require.Equal(t, 3, seq.ListeningLength())
	require.Equal(t, SectionListening, seq.Section())

	adv := seq.OnPosition(30)

	assert.Equal(t, 0, adv.From)
	assert.Equal(t, 3, adv.To)
	assert.True(t, adv.Transitioned)
	assert.Equal(t, SectionReading, seq.Section())
	assert.Equal(t, 3, seq.CurrentIndex())

	idx, item, ok := seq.Displayed()
	require.True(t, ok)
	assert.Equal(t, 3, idx)
	assert.Equal(t, 4, item.Question.ID)
}

func TestSequencer_ListeningOnlyAdvancesWithClock(t *testing.T) {
	seq := NewSequencer(listeningThenReading())
	require.Equal(t, 3, seq.ListeningLength())

	positions := []float64{0, 0.5, 3, 9.99, 10, 10, 5, 24, 25}
	prev := seq.CurrentIndex()
	for _, pos := range positions {
		before := seq.CurrentIndex()
		seq.OnPosition(pos)
		after := seq.CurrentIndex()

		assert.GreaterOrEqual(t, after, prev, "cursor went backwards at %.2f", pos)
		if after > before && seq.Section() == SectionListening {
			_, shown, _ := seq.Displayed()
			assert.GreaterOrEqual(t, pos, shown.StartTimestamp())
		}
		prev = after
	}
	assert.Equal(t, SectionReading, seq.Section())
}

func TestSequencer_StepsOneItemPerPosition(t *testing.T) {
	seq := NewSequencer(listeningThenReading())

	adv := seq.OnPosition(0)
	assert.Equal(t, 1, adv.To)
	idx, _, _ := seq.Displayed()
	assert.Equal(t, 0, idx)

	adv = seq.OnPosition(9)
	assert.False(t, adv.Moved())

	adv = seq.OnPosition(10)
	assert.Equal(t, 2, adv.To)
	assert.Equal(t, SectionListening, seq.Section())
}

func TestSequencer_NextPreviousClampedToReading(t *testing.T) {
	seq := NewSequencer(listeningThenReading())
	assert.False(t, seq.Next(), "next is ignored while listening")
	assert.False(t, seq.Previous())

	seq.OnPosition(100)
	require.Equal(t, SectionReading, seq.Section())
	require.Equal(t, 3, seq.CurrentIndex())

	assert.False(t, seq.Previous(), "cannot move before the first reading item")
	assert.Equal(t, 3, seq.CurrentIndex())

	assert.True(t, seq.Next())
	assert.True(t, seq.Next())
	assert.Equal(t, 5, seq.CurrentIndex())

	assert.False(t, seq.Next(), "cannot move past the last item")
	assert.Equal(t, 5, seq.CurrentIndex())

	for i := 0; i < 10; i++ {
		seq.Previous()
		assert.GreaterOrEqual(t, seq.CurrentIndex(), seq.ListeningLength())
	}
	assert.Equal(t, 3, seq.CurrentIndex())
}

func TestSequencer_JumpTo(t *testing.T) {
	seq := NewSequencer(listeningThenReading())

	assert.ErrorIs(t, seq.JumpTo(4), ErrJumpDuringListening)
	assert.Equal(t, 0, seq.CurrentIndex())

	seq.OnPosition(100)
	assert.ErrorIs(t, seq.JumpTo(1), ErrJumpOutOfRange)
	assert.ErrorIs(t, seq.JumpTo(6), ErrJumpOutOfRange)

	require.NoError(t, seq.JumpTo(5))
	assert.Equal(t, 5, seq.CurrentIndex())
	idx, _, _ := seq.Displayed()
	assert.Equal(t, 5, idx)
}

func TestSequencer_NoListeningPrefixStartsInReading(t *testing.T) {
	items := []model.DisplayItem{partItem(5, 0), questionItem(1, 101, 5, 0)}
	seq := NewSequencer(items)

	assert.Equal(t, SectionReading, seq.Section())
	assert.Equal(t, 0, seq.CurrentIndex())
	assert.False(t, seq.OnPosition(50).Moved())
}

func TestSequencer_ListeningOnlyTest(t *testing.T) {
	items := []model.DisplayItem{questionItem(1, 1, 1, 0), questionItem(2, 2, 1, 5)}
	seq := NewSequencer(items)

	seq.OnPosition(10)
	assert.Equal(t, SectionReading, seq.Section())
	idx, _, ok := seq.Displayed()
	require.True(t, ok)
	assert.Equal(t, 1, idx, "last listening item stays on screen")
	assert.False(t, seq.Next())
	assert.False(t, seq.Previous())
}
