package metadata

import (
	"strings"

	"maukemana-backend/internal/model"
)

// resolutionImageMap maps a resolution/HDR tier label to its badge
// image filename.
var resolutionImageMap = map[string]string{
	"480p":      "sd.png",
	"576p":      "sd.png",
	"720p":      "hd.png",
	"1080p":     "fullhd.png",
	"4K":        "4k.png",
	"4K HDR":    "4k-hdr.png",
	"4K DV":     "4k-dv.png",
}

// ExtractResolution bins the primary video stream's height into a
// tier and augments it with HDR/Dolby Vision flags.
func ExtractResolution(record model.MediaRecord) model.BadgePayload {
	if len(record.VideoStreams) == 0 {
		return model.NotApplicable(model.BadgeResolution)
	}

	v := record.VideoStreams[0]
	tier := heightTier(v.Height)
	if isDolbyVision(v) {
		tier += " DV"
	} else if isHDR(v) {
		tier += " HDR"
	}

	return model.BadgePayload{
		Type:        model.BadgeResolution,
		Applicable:  true,
		DisplayText: tier,
		ImageAsset:  resolutionImageMap[tier],
	}
}

func heightTier(height int) string {
	switch {
	case height >= 2000:
		return "4K"
	case height >= 1000:
		return "1080p"
	case height >= 700:
		return "720p"
	case height >= 570:
		return "576p"
	default:
		return "480p"
	}
}

func isDolbyVision(v model.VideoStream) bool {
	haystack := strings.ToLower(v.VideoRange + " " + v.VideoRangeType + " " + v.Title)
	return strings.Contains(haystack, "dolby vision") || strings.Contains(haystack, "dovi") ||
		strings.Contains(haystack, " dv")
}

func isHDR(v model.VideoStream) bool {
	haystack := strings.ToLower(v.VideoRange + " " + v.VideoRangeType)
	return strings.Contains(haystack, "hdr")
}
