package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Percent
		wantErr bool
	}{
		{"42%", 42, false},
		{"42", 42, false},
		{" 7 % ", 7, false},
		{"42.7%", 42, false},
		{"100%", 100, false},
		{"0%", 0, false},
		{"0", 0, false},
		{"250%", 100, false},
		{"-5%", 0, false},
		{"12abc", 12, false},
		{"abc%", 0, true},
		{"", 0, true},
		{"%", 0, true},
		{"-%", 0, true},
		{"99999999999999999999999%", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPercentString(t *testing.T) {
	assert.Equal(t, "42%", Percent(42).String())
	assert.Equal(t, "0%", Percent(0).String())
	assert.Equal(t, "100%", Percent(140).String())
	assert.False(t, Percent(0).Started())
	assert.True(t, Percent(1).Started())
}

func TestFromPosition(t *testing.T) {
	assert.Equal(t, Percent(50), FromPosition(100, 200))
	assert.Equal(t, Percent(1), FromPosition(1, 200), "0.5 rounds up")
	assert.Equal(t, Percent(100), FromPosition(200, 200))
	assert.Equal(t, Percent(100), FromPosition(250, 200))
	assert.Equal(t, Percent(0), FromPosition(5, 0))
	assert.Equal(t, Percent(0), FromPosition(0, 10))
	assert.Equal(t, Percent(33), FromPosition(1, 3))
	assert.Equal(t, Percent(67), FromPosition(2, 3))
}

func TestToPosition_Scenarios(t *testing.T) {
	// PDF with 200 pages opened at 50% lands on page 100
	assert.Equal(t, 100, ToPosition(50, 200))
	// EPUB with 1024 locations at 10% lands on location 102
	assert.Equal(t, 102, ToPosition(10, 1024))
	// Tiny percentages never land before the first position
	assert.Equal(t, 1, ToPosition(1, 20))
	assert.Equal(t, 0, ToPosition(0, 200))
	assert.Equal(t, 0, ToPosition(30, 0))
	assert.Equal(t, 7, ToPosition(100, 7))
}

func TestToPosition_StaysInRangeAndRoundTrips(t *testing.T) {
	for total := 100; total <= 1500; total += 37 {
		for p := Percent(1); p <= Max; p++ {
			pos := ToPosition(p, total)
			require.GreaterOrEqual(t, pos, 1)
			require.LessOrEqual(t, pos, total)

			back := FromPosition(pos, total)
			diff := int(back) - int(p)
			require.LessOrEqualf(t, abs(diff), 1, "percent %d total %d -> pos %d -> %d", p, total, pos, back)
		}
	}
}

func TestToPosition_SmallTotalsStayInRange(t *testing.T) {
	for total := 1; total < 100; total++ {
		for p := Percent(1); p <= Max; p++ {
			pos := ToPosition(p, total)
			require.GreaterOrEqual(t, pos, 1)
			require.LessOrEqual(t, pos, total)
		}
	}
}

func TestPositionRoundTrip(t *testing.T) {
	// Saving at position P and restoring lands within one percent's worth of P
	for _, total := range []int{120, 200, 333, 1024} {
		for pos := 1; pos <= total; pos++ {
			restored := ToPosition(FromPosition(pos, total), total)
			tolerance := total/100 + 1
			require.LessOrEqualf(t, abs(restored-pos), tolerance, "total %d pos %d restored %d", total, pos, restored)
		}
	}
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 1, Clamp(0, 10))
	assert.Equal(t, 1, Clamp(-3, 10))
	assert.Equal(t, 10, Clamp(11, 10))
	assert.Equal(t, 5, Clamp(5, 10))
	assert.Equal(t, 42, Clamp(42, 0))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
