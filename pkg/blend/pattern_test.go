package blend

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sferrors "github.com/otherjamesbrown/skyfeed/pkg/errors"
)

func TestParseSlot(t *testing.T) {
	tests := []struct {
		in      string
		want    Slot
		wantErr bool
	}{
		{in: "hour0", want: Slot{List: "hour", Position: 0}},
		{in: "day12", want: Slot{List: "day", Position: 12}},
		{in: " week3 ", want: Slot{List: "week", Position: 3}},
		{in: "top2day4", want: Slot{List: "top2day", Position: 4}},
		{in: "hour", wantErr: true},
		{in: "12", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSlot(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, sferrors.IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want.List+strconv.Itoa(tt.want.Position), got.String())
		})
	}
}

func TestParsePatternString(t *testing.T) {
	p, err := ParsePatternString("hour0, day0,week1\nhour1")
	require.NoError(t, err)
	assert.Equal(t, Pattern{
		{List: "hour", Position: 0},
		{List: "day", Position: 0},
		{List: "week", Position: 1},
		{List: "hour", Position: 1},
	}, p)
	assert.Equal(t, []string{"hour0", "day0", "week1", "hour1"}, p.Strings())

	_, err = ParsePatternString("hour0,bogus")
	assert.Error(t, err)
}

func TestDefaultPattern(t *testing.T) {
	p := DefaultPattern()
	require.Len(t, p, 25)
	assert.Equal(t, Slot{List: "hour", Position: 0}, p[0])
	assert.Equal(t, Slot{List: "week", Position: 8}, p[24])
	assert.Equal(t, []string{"hour", "day", "week"}, p.Lists())

	// Callers may mutate the returned pattern freely.
	p[0] = Slot{List: "x", Position: 1}
	assert.Equal(t, "hour0", DefaultPattern()[0].String())
}
