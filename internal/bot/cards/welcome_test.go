package cards_test

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/HugoSmits86/nativewebp"
	"github.com/rafaello-cc/levelbot/internal/bot/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelcomeTextOnly(t *testing.T) {
	t.Parallel()

	card, err := cards.Welcome(nil, "alice", 42)
	require.NoError(t, err)
	require.NotEmpty(t, card)

	img, err := nativewebp.Decode(bytes.NewReader(card))
	require.NoError(t, err)
	assert.Equal(t, 600, img.Bounds().Dx())
	assert.Equal(t, 220, img.Bounds().Dy())
}

func TestWelcomeWithAvatar(t *testing.T) {
	t.Parallel()

	avatar := image.NewRGBA(image.Rect(0, 0, 256, 256))
	for y := range 256 {
		for x := range 256 {
			avatar.Set(x, y, color.RGBA{R: 0xff, A: 0xff})
		}
	}

	card, err := cards.Welcome(avatar, "alice", 42)
	require.NoError(t, err)

	_, err = nativewebp.Decode(bytes.NewReader(card))
	require.NoError(t, err)
}
