package engine

import (
	"testing"

	"github.com/stemsi/toeic-session/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallTest() []model.DisplayItem {
	return []model.DisplayItem{
		partItem(1, 0),
		questionItem(11, 1, 1, 0),
		questionItem(12, 2, 1, 0),
		groupItem(90, 1, 0, 13, 3, 3),
	}
}

func TestAnswerSheet_InitializeExpandsGroups(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))

	assert.Equal(t, 5, sheet.Len())
	for order := 1; order <= 5; order++ {
		e, ok := sheet.Entry(order)
		require.True(t, ok, "order %d missing", order)
		assert.Nil(t, e.Answer)
		assert.False(t, e.IsMarked)
	}

	e, _ := sheet.Entry(4)
	assert.Equal(t, 14, e.QuestionID)
	assert.Equal(t, 3, e.DisplayItemIndex)

	e, _ = sheet.Entry(2)
	assert.Equal(t, 2, e.DisplayItemIndex)

	got := sheet.ByPartRange(1, 6)
	require.Len(t, got, 5)
	for i, entry := range got {
		assert.Equal(t, i+1, entry.OrderNumber)
	}
}

func TestAnswerSheet_SubmissionAnswers(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))

	require.True(t, sheet.SelectAnswer(3, "B"))
	answers := sheet.ToSubmissionAnswers()

	require.Len(t, answers, 5)
	seen := map[int]bool{}
	for _, a := range answers {
		seen[a.QuestionID] = true
		if a.QuestionID == 13 {
			require.NotNil(t, a.Answer)
			assert.Equal(t, "B", *a.Answer)
		} else {
			assert.Nil(t, a.Answer, "question %d should be skipped", a.QuestionID)
		}
	}
	assert.Len(t, seen, 5)
}

func TestAnswerSheet_EmptyStringIsAnAnswer(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))
	sheet.SelectAnswer(1, "")

	answers := sheet.ToSubmissionAnswers()
	require.NotNil(t, answers[0].Answer)
	assert.Equal(t, "", *answers[0].Answer)
}

func TestAnswerSheet_UnknownOrderIsNoop(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))

	assert.False(t, sheet.SelectAnswer(99, "A"))
	_, ok := sheet.ToggleMark(99)
	assert.False(t, ok)
	assert.Equal(t, 5, sheet.Len())
	_, ok = sheet.Entry(99)
	assert.False(t, ok)
}

func TestAnswerSheet_ToggleMark(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))

	marked, ok := sheet.ToggleMark(2)
	assert.True(t, ok)
	assert.True(t, marked)
	marked, _ = sheet.ToggleMark(2)
	assert.False(t, marked)
}

func TestAnswerSheet_EntryIsACopy(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))
	sheet.SelectAnswer(1, "A")

	e, _ := sheet.Entry(1)
	*e.Answer = "D"

	again, _ := sheet.Entry(1)
	assert.Equal(t, "A", *again.Answer)
}

func TestAnswerSheet_ReinitializeKeepsProgress(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))
	sheet.SelectAnswer(1, "C")
	sheet.ToggleMark(5)

	require.NoError(t, sheet.Initialize(smallTest()))

	e, _ := sheet.Entry(1)
	require.NotNil(t, e.Answer)
	assert.Equal(t, "C", *e.Answer)
	e, _ = sheet.Entry(5)
	assert.True(t, e.IsMarked)
}

func TestAnswerSheet_ReinitializeDropsChangedQuestion(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))
	sheet.SelectAnswer(1, "C")

	items := smallTest()
	items[1] = questionItem(77, 1, 1, 0)
	require.NoError(t, sheet.Initialize(items))

	e, _ := sheet.Entry(1)
	assert.Equal(t, 77, e.QuestionID)
	assert.Nil(t, e.Answer)
}

func TestAnswerSheet_DuplicateOrderRejected(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(smallTest()))
	sheet.SelectAnswer(1, "A")

	items := append(smallTest(), questionItem(99, 2, 1, 0))
	assert.Error(t, sheet.Initialize(items))

	e, _ := sheet.Entry(1)
	require.NotNil(t, e.Answer, "failed initialize must not touch the sheet")
	assert.Equal(t, 5, sheet.Len())
}

func TestAnswerSheet_PartRangesPartitionFullTest(t *testing.T) {
	items := fullTestItems()
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(items))
	require.Equal(t, 200, sheet.Len())

	seen := make(map[int]int)
	total := 0
	for _, r := range PartRanges {
		for _, e := range sheet.ByPartRange(r.Low, r.High) {
			seen[e.OrderNumber]++
			total++
		}
	}
	assert.Equal(t, 200, total)
	for order := 1; order <= 200; order++ {
		assert.Equal(t, 1, seen[order], "order %d covered %d times", order, seen[order])
	}

	for i := 1; i < len(PartRanges); i++ {
		assert.Equal(t, PartRanges[i-1].High+1, PartRanges[i].Low)
	}
}

func TestAnswerSheet_Summary(t *testing.T) {
	sheet := NewAnswerSheet()
	require.NoError(t, sheet.Initialize(fullTestItems()))
	sheet.SelectAnswer(7, "A")
	sheet.SelectAnswer(8, "B")
	sheet.ToggleMark(30)

	part2, ok := sheet.SummaryForPart(2)
	require.True(t, ok)
	assert.Len(t, part2.Entries, 25)
	assert.Equal(t, 2, part2.Answered)
	assert.Equal(t, 1, part2.Marked)

	_, ok = sheet.SummaryForPart(8)
	assert.False(t, ok)
	assert.Len(t, sheet.Summary(), 7)
}
