// Package metadata implements one pure badge extractor per badge
// type, plus the external provider clients (review, awards) some of
// them depend on.
package metadata

import (
	"strings"

	"maukemana-backend/internal/model"
)

// audioImageMap maps a display-codec string to the badge-image
// filename configured for it. Unmatched codecs fall back to text.
var audioImageMap = map[string]string{
	"Atmos":        "dolby-atmos.png",
	"DTS-X":        "dts-x.png",
	"TrueHD":       "dolby-truehd.png",
	"DTS-HD MA":    "dts-hd-ma.png",
	"DTS":          "dts.png",
	"AC3":          "dolby-digital.png",
	"EAC3":         "dolby-digital-plus.png",
	"AAC":          "aac.png",
	"FLAC":         "flac.png",
	"PCM":          "pcm.png",
}

// qualityTokens, in descending priority, identify premium audio
// formats by scanning codec/profile/title/display-title fields.
var qualityTokens = []struct {
	display string
	tokens  []string
}{
	{"Atmos", []string{"atmos"}},
	{"DTS-X", []string{"dts-x", "dts:x", "dtsx"}},
	{"TrueHD", []string{"truehd", "true-hd"}},
	{"DTS-HD MA", []string{"dts-hd ma", "dts-hd.ma", "dtshd"}},
}

// codecBaseScore ranks codec families from lossless object-audio
// (highest) to basic stereo codecs (lowest).
var codecBaseScore = map[string]int{
	"truehd": 100,
	"dts":    90,
	"eac3":   50,
	"ac3":    40,
	"aac":    20,
	"mp3":    10,
}

// ExtractAudio selects the primary audio stream by quality score and
// produces its badge payload, or NotApplicable if the record carries
// no audio streams.
func ExtractAudio(record model.MediaRecord) model.BadgePayload {
	if len(record.AudioStreams) == 0 {
		return model.NotApplicable(model.BadgeAudio)
	}

	best := record.AudioStreams[0]
	bestScore := audioScore(best)
	for _, s := range record.AudioStreams[1:] {
		score := audioScore(s)
		if score > bestScore {
			best = s
			bestScore = score
		}
	}

	display := displayCodec(best)
	return model.BadgePayload{
		Type:        model.BadgeAudio,
		Applicable:  true,
		DisplayText: display,
		ImageAsset:  audioImageMap[display],
	}
}

func audioScore(s model.AudioStream) int {
	score := codecBaseScore[strings.ToLower(s.Codec)]
	for _, qt := range qualityTokens {
		if matchesAny(s, qt.tokens) {
			score += 1000 // lossless object-audio formats dominate the ranking
			break
		}
	}
	score += s.Channels * 5
	score += s.BitRate / 100000
	if s.IsDefault {
		score += 1
	}
	return score
}

func matchesAny(s model.AudioStream, tokens []string) bool {
	haystack := strings.ToLower(s.Codec + " " + s.Profile + " " + s.Title + " " + s.DisplayTitle)
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			return true
		}
	}
	return false
}

// displayCodec returns the human-facing codec label for a stream,
// preferring a detected premium-format token over the raw codec name.
func displayCodec(s model.AudioStream) string {
	for _, qt := range qualityTokens {
		if matchesAny(s, qt.tokens) {
			return qt.display
		}
	}
	switch strings.ToUpper(s.Codec) {
	case "EAC3":
		return "EAC3"
	case "AC3":
		return "AC3"
	default:
		return strings.ToUpper(s.Codec)
	}
}
