package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleCancelMarkup(t *testing.T) {
	m := SingleCancelMarkup("cancel")
	require.Len(t, m.InlineKeyboard, 1)
	require.Len(t, m.InlineKeyboard[0], 1)
	btn := m.InlineKeyboard[0][0]
	assert.Equal(t, "cancel", btn.Unique)
	assert.Equal(t, CancelLabel, btn.Text)

	assert.Equal(t, "Stop", SingleCancelMarkup("cancel", "Stop").InlineKeyboard[0][0].Text)
}

func TestForceReplySelective(t *testing.T) {
	m := ForceReply(true)
	assert.True(t, m.ForceReply)
	assert.True(t, m.Selective)
}
