// Package composer places one or more rendered badges onto a source
// poster image at a configured anchor, with optional dynamic sizing
// and deterministic output. The poster is decoded with image.Decode and
// the result encoded with image/jpeg; badge image assets are resized
// with disintegration/imaging (Lanczos). Badge rendering (background
// rectangles, rounded corners, text) uses github.com/fogleman/gg for
// rasterised overlay work.
package composer

import "strings"

// Anchor is one of the nine poster regions plus four edge-flush
// variants used for awards badges.
type Anchor string

const (
	AnchorTopLeft      Anchor = "top-left"
	AnchorTopCenter    Anchor = "top-center"
	AnchorTopRight     Anchor = "top-right"
	AnchorCenterLeft   Anchor = "center-left"
	AnchorCenter       Anchor = "center"
	AnchorCenterRight  Anchor = "center-right"
	AnchorBottomLeft   Anchor = "bottom-left"
	AnchorBottomCenter Anchor = "bottom-center"
	AnchorBottomRight  Anchor = "bottom-right"

	AnchorTopLeftFlush     Anchor = "top-left-flush"
	AnchorTopRightFlush    Anchor = "top-right-flush"
	AnchorBottomLeftFlush  Anchor = "bottom-left-flush"
	AnchorBottomRightFlush Anchor = "bottom-right-flush"
)

// flush reports whether the anchor abuts the poster edge with zero
// effective padding, and returns the non-flush anchor it is based on.
func (a Anchor) flush() (Anchor, bool) {
	base, ok := strings.CutSuffix(string(a), "-flush")
	if !ok {
		return a, false
	}
	return Anchor(base), true
}

// origin computes the top-left pixel of a badgeW x badgeH box placed
// at anchor within a posterW x posterH canvas, honouring edgePadding
// (zero when the anchor is a flush variant).
func (a Anchor) origin(posterW, posterH, badgeW, badgeH, edgePadding int) (x, y int) {
	base, isFlush := a.flush()
	padding := edgePadding
	if isFlush {
		padding = 0
	}

	switch base {
	case AnchorTopLeft:
		return padding, padding
	case AnchorTopCenter:
		return (posterW - badgeW) / 2, padding
	case AnchorTopRight:
		return posterW - badgeW - padding, padding
	case AnchorCenterLeft:
		return padding, (posterH - badgeH) / 2
	case AnchorCenter:
		return (posterW - badgeW) / 2, (posterH - badgeH) / 2
	case AnchorCenterRight:
		return posterW - badgeW - padding, (posterH - badgeH) / 2
	case AnchorBottomLeft:
		return padding, posterH - badgeH - padding
	case AnchorBottomCenter:
		return (posterW - badgeW) / 2, posterH - badgeH - padding
	case AnchorBottomRight:
		return posterW - badgeW - padding, posterH - badgeH - padding
	default:
		return padding, padding
	}
}

// stackAxis reports the secondary axis along which multiple badges at
// the same anchor stack: vertical for left/right and center anchors,
// horizontal for top/bottom anchors.
func (a Anchor) stackAxis() (dx, dy int) {
	base, _ := a.flush()
	switch base {
	case AnchorTopLeft, AnchorTopCenter, AnchorTopRight,
		AnchorBottomLeft, AnchorBottomCenter, AnchorBottomRight:
		return 1, 0
	case AnchorCenterLeft, AnchorCenterRight, AnchorCenter:
		return 0, 1
	default:
		return 1, 0
	}
}
