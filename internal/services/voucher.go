package services

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"image/color"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mwanafrika/mwanafrika-backend/internal/pkg/logger"
)

// Unambiguous alphabet: no 0/O or 1/I.
const voucherAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewVoucherCode returns a code of the form MWA-XXXX-XXXX.
func NewVoucherCode() (string, error) {
	radix := big.NewInt(int64(len(voucherAlphabet)))
	var b strings.Builder
	b.WriteString("MWA-")
	for i := 0; i < 8; i++ {
		if i == 4 {
			b.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, radix)
		if err != nil {
			return "", fmt.Errorf("voucher code: %w", err)
		}
		b.WriteByte(voucherAlphabet[n.Int64()])
	}
	return b.String(), nil
}

type VoucherData struct {
	Code        string
	RewardName  string
	Partner     string
	Cost        int64
	StudentName string
	IssuedAt    time.Time
}

type VoucherRenderer interface {
	RenderPNG(v VoucherData) ([]byte, error)
}

type voucherRenderer struct {
	log *logger.Logger

	// truetype faces cache glyphs and are not safe for concurrent use.
	mu        sync.Mutex
	titleFace font.Face
	codeFace  font.Face
	bodyFace  font.Face
}

func NewVoucherRenderer(log *logger.Logger) (VoucherRenderer, error) {
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	face := func(f *truetype.Font, size float64) font.Face {
		return truetype.NewFace(f, &truetype.Options{Size: size, DPI: 72, Hinting: font.HintingNone})
	}
	return &voucherRenderer{
		log:       log.With("service", "VoucherRenderer"),
		titleFace: face(bold, 40),
		codeFace:  face(bold, 56),
		bodyFace:  face(regular, 26),
	}, nil
}

var (
	voucherGreen = color.NRGBA{R: 0x1B, G: 0x7F, B: 0x3B, A: 0xFF}
	voucherGold  = color.NRGBA{R: 0xF4, G: 0xB4, B: 0x1A, A: 0xFF}
	voucherInk   = color.NRGBA{R: 0x22, G: 0x22, B: 0x22, A: 0xFF}
)

func (vr *voucherRenderer) RenderPNG(v VoucherData) ([]byte, error) {
	const w, h = 900, 480
	vr.mu.Lock()
	defer vr.mu.Unlock()

	dc := gg.NewContext(w, h)
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(voucherGreen)
	dc.DrawRectangle(0, 0, w, 110)
	dc.Fill()
	dc.SetColor(voucherGold)
	dc.DrawRectangle(0, 110, w, 8)
	dc.Fill()

	dc.SetFontFace(vr.titleFace)
	dc.SetColor(color.White)
	dc.DrawStringAnchored("MwanAfrika Reward Voucher", w/2, 55, 0.5, 0.5)

	dc.SetFontFace(vr.bodyFace)
	dc.SetColor(voucherInk)
	dc.DrawStringAnchored(v.RewardName, w/2, 170, 0.5, 0.5)
	if v.Partner != "" {
		dc.DrawStringAnchored("Redeem at "+v.Partner, w/2, 210, 0.5, 0.5)
	}

	dc.SetDash(12, 8)
	dc.SetLineWidth(3)
	dc.SetColor(voucherGreen)
	dc.DrawRoundedRectangle(150, 245, 600, 110, 16)
	dc.Stroke()
	dc.SetDash()

	dc.SetFontFace(vr.codeFace)
	dc.SetColor(voucherInk)
	dc.DrawStringAnchored(v.Code, w/2, 300, 0.5, 0.5)

	dc.SetFontFace(vr.bodyFace)
	footer := fmt.Sprintf("%d coins", v.Cost)
	if v.StudentName != "" {
		footer = v.StudentName + "  ·  " + footer
	}
	if !v.IssuedAt.IsZero() {
		footer += "  ·  " + v.IssuedAt.Format("2 Jan 2006")
	}
	dc.DrawStringAnchored(footer, w/2, 410, 0.5, 0.5)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("encode voucher png: %w", err)
	}
	return buf.Bytes(), nil
}
