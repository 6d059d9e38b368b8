package client

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"
)

type ebitenSprite struct {
	img *ebiten.Image
}

func (s ebitenSprite) Size() (int, int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// ebitenSurface 基于 ebiten 屏幕的绘制表面，每帧 Draw 前通过 target 指向当前屏幕
type ebitenSurface struct {
	screen *ebiten.Image
	face   *text.GoTextFace
	w, h   int
}

func newEbitenSurface(w, h int, fontSize float64) (*ebitenSurface, error) {
	src, err := text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
	if err != nil {
		return nil, fmt.Errorf("load label font: %w", err)
	}
	return &ebitenSurface{
		face: &text.GoTextFace{Source: src, Size: fontSize},
		w:    w,
		h:    h,
	}, nil
}

func (s *ebitenSurface) target(screen *ebiten.Image) {
	s.screen = screen
	b := screen.Bounds()
	s.w, s.h = b.Dx(), b.Dy()
}

func (s *ebitenSurface) Size() (int, int) { return s.w, s.h }

func (s *ebitenSurface) Clear() {
	s.screen.Clear()
}

func (s *ebitenSurface) DrawBackdrop(src Sprite, camX, camY float64) {
	img := src.(ebitenSprite).img
	x0, y0 := int(camX), int(camY)
	rect := image.Rect(x0, y0, x0+s.w+1, y0+s.h+1).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(float64(rect.Min.X)-camX, float64(rect.Min.Y)-camY)
	s.screen.DrawImage(img.SubImage(rect).(*ebiten.Image), op)
}

func (s *ebitenSurface) DrawSprite(sp Sprite, x, y, scale float64, mirror bool) {
	img := sp.(ebitenSprite).img
	op := &ebiten.DrawImageOptions{}
	if mirror {
		// 水平翻转后平移回原区域
		op.GeoM.Scale(-1, 1)
		op.GeoM.Translate(float64(img.Bounds().Dx()), 0)
	}
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(x, y)
	op.Filter = ebiten.FilterLinear
	s.screen.DrawImage(img, op)
}

func (s *ebitenSurface) FillRect(x, y, w, h float64, c color.Color) {
	vector.DrawFilledRect(s.screen, float32(x), float32(y), float32(w), float32(h), c, false)
}

func (s *ebitenSurface) MeasureText(str string) (float64, float64) {
	return text.Measure(str, s.face, s.face.Size*1.2)
}

func (s *ebitenSurface) DrawText(str string, x, y float64, c color.Color) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(c)
	op.LineSpacing = s.face.Size * 1.2
	text.Draw(s.screen, str, s.face, op)
}

func (s *ebitenSurface) NewSprite(img image.Image) Sprite {
	return ebitenSprite{img: ebiten.NewImageFromImage(img)}
}
