package metadata_test

import (
	"testing"

	"maukemana-backend/internal/metadata"
	"maukemana-backend/internal/model"
)

func TestExtractAudioNoStreamsNotApplicable(t *testing.T) {
	payload := metadata.ExtractAudio(model.MediaRecord{})
	if payload.Applicable {
		t.Error("expected not-applicable for a record with no audio streams")
	}
}

func TestExtractAudioPicksHighestQualityStream(t *testing.T) {
	record := model.MediaRecord{
		AudioStreams: []model.AudioStream{
			{Codec: "aac", Channels: 2},
			{Codec: "truehd", Profile: "Atmos", Channels: 8},
			{Codec: "ac3", Channels: 6},
		},
	}
	payload := metadata.ExtractAudio(record)
	if !payload.Applicable {
		t.Fatal("expected applicable")
	}
	if payload.DisplayText != "Atmos" {
		t.Errorf("DisplayText = %q, want %q", payload.DisplayText, "Atmos")
	}
	if payload.ImageAsset != "dolby-atmos.png" {
		t.Errorf("ImageAsset = %q, want %q", payload.ImageAsset, "dolby-atmos.png")
	}
}

func TestExtractAudioDisplayCodecFallback(t *testing.T) {
	tests := []struct {
		name    string
		stream  model.AudioStream
		display string
	}{
		{"plain EAC3", model.AudioStream{Codec: "eac3"}, "EAC3"},
		{"plain AC3", model.AudioStream{Codec: "ac3"}, "AC3"},
		{"unknown codec upper-cased", model.AudioStream{Codec: "flac"}, "FLAC"},
		{"dts-x via title token", model.AudioStream{Codec: "dts", DisplayTitle: "DTS-X 7.1"}, "DTS-X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := model.MediaRecord{AudioStreams: []model.AudioStream{tt.stream}}
			payload := metadata.ExtractAudio(record)
			if payload.DisplayText != tt.display {
				t.Errorf("DisplayText = %q, want %q", payload.DisplayText, tt.display)
			}
		})
	}
}
