package composer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"

	"maukemana-backend/internal/batcherr"
	"maukemana-backend/internal/config"
	"maukemana-backend/internal/model"
)

// jpegQuality is fixed (not configurable) so that Compose is
// byte-identical across runs for a given input.
const jpegQuality = 92

// Badge pairs one extractor's payload with the style configured for
// its badge type.
type Badge struct {
	Payload model.BadgePayload
	Style   config.BadgeStyleConfig
}

// Compose renders every applicable badge onto source and returns the
// encoded JPEG bytes. Badges are processed in a stable order (grouped
// by anchor, then by the order they were passed in) so that output is
// deterministic regardless of map iteration elsewhere in the caller.
func Compose(source []byte, badges []Badge) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(source))
	if err != nil {
		return nil, batcherr.Compose("composer.compose", fmt.Errorf("decode source image: %w", err))
	}

	bounds := img.Bounds()
	posterW, posterH := bounds.Dx(), bounds.Dy()

	ctx := gg.NewContextForImage(img)

	groups := groupByAnchor(badges)
	anchors := make([]Anchor, 0, len(groups))
	for a := range groups {
		anchors = append(anchors, a)
	}
	sort.Slice(anchors, func(i, j int) bool { return anchors[i] < anchors[j] })

	for _, anchor := range anchors {
		if err := renderAnchorGroup(ctx, posterW, posterH, anchor, groups[anchor]); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, ctx.Image(), &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, batcherr.Compose("composer.compose", fmt.Errorf("encode composed image: %w", err))
	}
	return buf.Bytes(), nil
}

func groupByAnchor(badges []Badge) map[Anchor][]Badge {
	groups := make(map[Anchor][]Badge)
	for _, b := range badges {
		if !b.Payload.Applicable {
			continue
		}
		anchor := Anchor(b.Style.Position)
		groups[anchor] = append(groups[anchor], b)
	}
	return groups
}

// renderAnchorGroup draws every badge assigned to one anchor,
// stacking along the anchor's secondary axis with configured spacing.
func renderAnchorGroup(ctx *gg.Context, posterW, posterH int, anchor Anchor, badges []Badge) error {
	dx, dy := anchor.stackAxis()
	offsetX, offsetY := 0, 0

	for _, b := range badges {
		size := badgeSize(b.Style, posterW)
		x, y := anchor.origin(posterW, posterH, size, size, b.Style.EdgePadding)
		x += offsetX
		y += offsetY

		if err := renderBadge(ctx, b, x, y, size); err != nil {
			return err
		}

		offsetX += dx * (size + b.Style.Spacing)
		offsetY += dy * (size + b.Style.Spacing)
	}
	return nil
}

// badgeSize applies the dynamic-sizing formula:
// round(base_size * poster_width / 1000), or the fixed base_size when
// dynamic sizing is disabled for this badge type.
func badgeSize(style config.BadgeStyleConfig, posterW int) int {
	if !style.DynamicSizing {
		return style.BaseSize
	}
	return (style.BaseSize*posterW + 500) / 1000 // +500 for round-half-up
}

func renderBadge(ctx *gg.Context, b Badge, x, y, size int) error {
	drawBackground(ctx, b.Style, x, y, size)

	if b.Payload.ImageAsset != "" {
		assetPath := filepath.Join(b.Style.AssetDirectory, b.Payload.ImageAsset)
		if asset, err := loadAsset(assetPath); err == nil {
			resized := imaging.Fit(asset, size, size, imaging.Lanczos)
			ctx.DrawImage(resized, x, y)
			return nil
		}
		if !b.Style.FallbackToText {
			return nil
		}
	}

	if b.Payload.DisplayText == "" {
		return nil
	}
	return drawText(ctx, b.Style, b.Payload.DisplayText, x, y, size)
}

func loadAsset(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

func drawBackground(ctx *gg.Context, style config.BadgeStyleConfig, x, y, size int) {
	if style.BackgroundColor == "" {
		return
	}
	c := parseHexColor(style.BackgroundColor, style.Opacity)

	if style.ShadowBlur > 0 {
		shadow := color.NRGBA{R: 0, G: 0, B: 0, A: 120}
		ctx.SetColor(shadow)
		drawRoundedRect(ctx, float64(x+style.ShadowOffsetX), float64(y+style.ShadowOffsetY),
			float64(size), float64(size), float64(style.CornerRadius))
		ctx.Fill()
	}

	ctx.SetColor(c)
	drawRoundedRect(ctx, float64(x), float64(y), float64(size), float64(size), float64(style.CornerRadius))
	ctx.Fill()
}

func drawRoundedRect(ctx *gg.Context, x, y, w, h, radius float64) {
	if radius <= 0 {
		ctx.DrawRectangle(x, y, w, h)
		return
	}
	ctx.DrawRoundedRectangle(x, y, w, h, radius)
}

func drawText(ctx *gg.Context, style config.BadgeStyleConfig, text string, x, y, size int) error {
	if style.FontPath != "" {
		if err := ctx.LoadFontFace(style.FontPath, float64(size)/2); err != nil {
			return batcherr.Compose("composer.draw_text", fmt.Errorf("load font %s: %w", style.FontPath, err))
		}
	}
	ctx.SetColor(color.White)
	cx := float64(x) + float64(size)/2
	cy := float64(y) + float64(size)/2
	ctx.DrawStringAnchored(text, cx, cy, 0.5, 0.5)
	return nil
}

// parseHexColor parses a "#rrggbb" or "rrggbb" string, applying an
// opacity percentage (0-100) as the alpha channel.
func parseHexColor(hex string, opacityPct int) color.NRGBA {
	hex = trimHash(hex)
	var r, g, b uint8
	fmt.Sscanf(hex, "%02x%02x%02x", &r, &g, &b)
	alpha := uint8(255)
	if opacityPct >= 0 && opacityPct <= 100 {
		alpha = uint8(255 * opacityPct / 100)
	}
	return color.NRGBA{R: r, G: g, B: b, A: alpha}
}

func trimHash(s string) string {
	if len(s) > 0 && s[0] == '#' {
		return s[1:]
	}
	return s
}
