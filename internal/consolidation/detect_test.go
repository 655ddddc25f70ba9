package consolidation

import (
	"testing"

	"TournamentSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }
func boolPtr(v bool) *bool    { return &v }
func int64Ptr(v int64) *int64 { return &v }

func TestDetectMultiDay_StructuredFields(t *testing.T) {
	g := &model.Game{Name: "Mystery Bounty", DayNumber: intPtr(2)}
	det := DetectMultiDay(g)
	assert.True(t, det.IsMultiDay)
	assert.Equal(t, DetectFromDayNumberField, det.Source)
	require.NotNil(t, det.DayNumber)
	assert.Equal(t, 2, *det.DayNumber)
	assert.Nil(t, det.FlightLetter)
	assert.False(t, det.IsFinalDay)
}

func TestDetectMultiDay_FinalDayField(t *testing.T) {
	g := &model.Game{Name: "Mystery Bounty", FinalDay: boolPtr(true)}
	det := DetectMultiDay(g)
	assert.True(t, det.IsMultiDay)
	assert.True(t, det.IsFinalDay)
	assert.Equal(t, DetectFromFinalDayField, det.Source)
}

func TestDetectMultiDay_NameDayFlight(t *testing.T) {
	g := &model.Game{Name: "Summer Classic Day 1A"}
	det := DetectMultiDay(g)
	assert.True(t, det.IsMultiDay)
	assert.Equal(t, DetectFromNamePattern, det.Source)
	require.NotNil(t, det.DayNumber)
	assert.Equal(t, 1, *det.DayNumber)
	require.NotNil(t, det.FlightLetter)
	assert.Equal(t, "A", *det.FlightLetter)
}

func TestDetectMultiDay_NameFlightOnly(t *testing.T) {
	g := &model.Game{Name: "Deep Freeze Flight B"}
	det := DetectMultiDay(g)
	assert.True(t, det.IsMultiDay)
	require.NotNil(t, det.FlightLetter)
	assert.Equal(t, "B", *det.FlightLetter)
	assert.Nil(t, det.DayNumber)
}

func TestDetectMultiDay_NameFinalDay(t *testing.T) {
	det := DetectMultiDay(&model.Game{Name: "Summer Classic Final Day"})
	assert.True(t, det.IsMultiDay)
	assert.True(t, det.IsFinalDay)

	det = DetectMultiDay(&model.Game{Name: "Summer Classic Final Table"})
	assert.True(t, det.IsFinalDay)
}

func TestDetectMultiDay_BareDayToken(t *testing.T) {
	det := DetectMultiDay(&model.Game{Name: "Mystery Bounty 1A"})
	assert.True(t, det.IsMultiDay)
	require.NotNil(t, det.DayNumber)
	assert.Equal(t, 1, *det.DayNumber)
	require.NotNil(t, det.FlightLetter)
	assert.Equal(t, "A", *det.FlightLetter)
}

func TestDetectMultiDay_StructuredFieldsWinOverName(t *testing.T) {
	// 结构化字段优先，名称解析只补空缺
	g := &model.Game{Name: "Summer Classic Day 1A", DayNumber: intPtr(2)}
	det := DetectMultiDay(g)
	assert.Equal(t, DetectFromDayNumberField, det.Source)
	assert.Equal(t, 2, *det.DayNumber)
	require.NotNil(t, det.FlightLetter)
	assert.Equal(t, "A", *det.FlightLetter)
}

func TestDetectMultiDay_SingleDayGame(t *testing.T) {
	// "Sunday" 里的 day 不能触发：需要词边界
	det := DetectMultiDay(&model.Game{Name: "Sunday Special Freezeout"})
	assert.False(t, det.IsMultiDay)
	assert.Equal(t, DetectNone, det.Source)

	det = DetectMultiDay(nil)
	assert.False(t, det.IsMultiDay)
}
