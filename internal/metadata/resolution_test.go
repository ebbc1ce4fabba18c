package metadata_test

import (
	"testing"

	"maukemana-backend/internal/metadata"
	"maukemana-backend/internal/model"
)

func TestExtractResolutionNoStreamsNotApplicable(t *testing.T) {
	payload := metadata.ExtractResolution(model.MediaRecord{})
	if payload.Applicable {
		t.Error("expected not-applicable for a record with no video streams")
	}
}

func TestExtractResolutionTiersAndHDR(t *testing.T) {
	tests := []struct {
		name       string
		stream     model.VideoStream
		wantTier   string
	}{
		{"SD", model.VideoStream{Height: 480}, "480p"},
		{"576p PAL", model.VideoStream{Height: 576}, "576p"},
		{"720p", model.VideoStream{Height: 720}, "720p"},
		{"1080p", model.VideoStream{Height: 1080}, "1080p"},
		{"4K plain", model.VideoStream{Height: 2160}, "4K"},
		{"4K HDR10", model.VideoStream{Height: 2160, VideoRange: "HDR10"}, "4K HDR"},
		{"4K Dolby Vision", model.VideoStream{Height: 2160, VideoRangeType: "DOVI"}, "4K DV"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := model.MediaRecord{VideoStreams: []model.VideoStream{tt.stream}}
			payload := metadata.ExtractResolution(record)
			if payload.DisplayText != tt.wantTier {
				t.Errorf("DisplayText = %q, want %q", payload.DisplayText, tt.wantTier)
			}
		})
	}
}

func TestExtractResolutionDolbyVisionTakesPriorityOverHDR(t *testing.T) {
	record := model.MediaRecord{VideoStreams: []model.VideoStream{
		{Height: 2160, VideoRange: "HDR10", Title: "Dolby Vision"},
	}}
	payload := metadata.ExtractResolution(record)
	if payload.DisplayText != "4K DV" {
		t.Errorf("DisplayText = %q, want %q", payload.DisplayText, "4K DV")
	}
}
