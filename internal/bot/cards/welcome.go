// Package cards renders the image cards the bot attaches to messages.
package cards

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	stddraw "image/draw"
	"sync"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

const (
	cardWidth  = 600
	cardHeight = 220

	avatarSize   = 128
	avatarMargin = 46

	nameFontSize     = 30
	subtitleFontSize = 18
	fontDPI          = 72
)

var (
	cardBackground = color.RGBA{R: 0x23, G: 0x27, B: 0x2a, A: 0xff}
	cardAccent     = color.RGBA{R: 0x5b, G: 0x65, B: 0xf2, A: 0xff}
	cardText       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	cardSubText    = color.RGBA{R: 0xb9, G: 0xbb, B: 0xbe, A: 0xff}
)

var (
	faceOnce     sync.Once
	faceErr      error
	nameFace     font.Face
	subtitleFace font.Face
)

func loadFaces() error {
	faceOnce.Do(func() {
		parsed, err := opentype.Parse(goregular.TTF)
		if err != nil {
			faceErr = fmt.Errorf("failed to parse card font: %w", err)
			return
		}

		nameFace, err = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size: nameFontSize, DPI: fontDPI, Hinting: font.HintingFull,
		})
		if err != nil {
			faceErr = fmt.Errorf("failed to create name face: %w", err)
			return
		}

		subtitleFace, err = opentype.NewFace(parsed, &opentype.FaceOptions{
			Size: subtitleFontSize, DPI: fontDPI, Hinting: font.HintingFull,
		})
		if err != nil {
			faceErr = fmt.Errorf("failed to create subtitle face: %w", err)
		}
	})

	return faceErr
}

// Welcome renders the card posted when a member joins, encoded as WebP.
// The avatar may be nil, in which case the card is text only.
func Welcome(avatar image.Image, memberName string, memberNumber int) ([]byte, error) {
	if err := loadFaces(); err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, cardWidth, cardHeight))
	stddraw.Draw(img, img.Bounds(), image.NewUniform(cardBackground), image.Point{}, stddraw.Src)

	// Accent strip along the top edge.
	stddraw.Draw(img, image.Rect(0, 0, cardWidth, 8), image.NewUniform(cardAccent), image.Point{}, stddraw.Src)

	textLeft := cardWidth / 2
	if avatar != nil {
		drawAvatar(img, avatar)

		textLeft = avatarMargin + avatarSize + (cardWidth-avatarMargin-avatarSize)/2
	}

	drawCenteredText(img, nameFace, fmt.Sprintf("Welcome, %s!", memberName), cardText, textLeft, cardHeight/2)
	drawCenteredText(img, subtitleFace, fmt.Sprintf("You are member #%d", memberNumber), cardSubText, textLeft, cardHeight/2+34)

	var buf bytes.Buffer
	if err := nativewebp.Encode(&buf, img, nil); err != nil {
		return nil, fmt.Errorf("failed to encode welcome card: %w", err)
	}

	return buf.Bytes(), nil
}

// drawAvatar scales the avatar down and composites it through a circular
// mask on the left side of the card.
func drawAvatar(img *image.RGBA, avatar image.Image) {
	scaled := image.NewRGBA(image.Rect(0, 0, avatarSize, avatarSize))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), avatar, avatar.Bounds(), draw.Src, nil)

	top := (cardHeight - avatarSize) / 2
	target := image.Rect(avatarMargin, top, avatarMargin+avatarSize, top+avatarSize)
	mask := &circleMask{radius: avatarSize / 2}

	stddraw.DrawMask(img, target, scaled, image.Point{}, mask, image.Point{}, stddraw.Over)
}

// circleMask is an alpha mask covering a filled circle of the given radius.
type circleMask struct {
	radius int
}

func (c *circleMask) ColorModel() color.Model {
	return color.AlphaModel
}

func (c *circleMask) Bounds() image.Rectangle {
	return image.Rect(0, 0, 2*c.radius, 2*c.radius)
}

func (c *circleMask) At(x, y int) color.Color {
	dx := x - c.radius
	dy := y - c.radius

	if dx*dx+dy*dy <= c.radius*c.radius {
		return color.Alpha{A: 0xff}
	}

	return color.Alpha{}
}

func drawCenteredText(img *image.RGBA, face font.Face, text string, textColor color.Color, centerX, baseline int) {
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
	}

	width := drawer.MeasureString(text)
	drawer.Dot = fixed.Point26_6{
		X: fixed.I(centerX) - width/2,
		Y: fixed.I(baseline),
	}
	drawer.DrawString(text)
}
