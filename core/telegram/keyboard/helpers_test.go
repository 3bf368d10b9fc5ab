package keyboard

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInlineButtonsNPerRow(t *testing.T) {
	opts := []string{"LGT", "Website", "Referral", "LinkedIn", "Events", "Others"}
	markup := InlineButtonsNPerRow(Choices("lead_inbound_source", opts), 2)

	require.Len(t, markup.InlineKeyboard, 3)
	for _, row := range markup.InlineKeyboard {
		assert.Len(t, row, 2)
	}
	first := markup.InlineKeyboard[0][0]
	assert.Equal(t, "LGT", first.Text)
	assert.Equal(t, "lead_inbound_source", first.Unique)
	assert.Equal(t, "\flead_inbound_source|LGT", Choices("lead_inbound_source", opts)[0].CallbackData())
}

func TestChunk(t *testing.T) {
	btns := Choices("k", []string{"a", "b", "c"})
	assert.Len(t, Chunk(btns, 2), 2)
	assert.Len(t, Chunk(btns, 0), 3)
	assert.Empty(t, Chunk(nil, 2))
}

func TestValidate(t *testing.T) {
	ok := InlineBtn{Text: "Energy & Infrastructure", Unique: "lead_sector", Data: "Energy & Infrastructure"}
	assert.NoError(t, ok.Validate())

	long := InlineBtn{Text: "x", Unique: "lead_sector", Data: strings.Repeat("x", 60)}
	assert.Error(t, long.Validate())
}
