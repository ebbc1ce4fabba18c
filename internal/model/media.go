package model

// MediaRecord is the subset of a Jellyfin library item the metadata
// extractors need. It is populated by the Jellyfin client's GetMedia
// call.
type MediaRecord struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	ProviderIDs     map[string]string `json:"provider_ids"` // e.g. "Tmdb" -> "603"
	AudioStreams    []AudioStream `json:"audio_streams"`
	VideoStreams    []VideoStream `json:"video_streams"`
}

// AudioStream describes one audio track on a media item, as reported
// by Jellyfin's MediaSources/MediaStreams payload.
type AudioStream struct {
	Codec        string `json:"codec"`
	Profile      string `json:"profile"`
	Title        string `json:"title"`
	DisplayTitle string `json:"display_title"`
	Channels     int    `json:"channels"`
	BitRate      int    `json:"bit_rate"`
	IsDefault    bool   `json:"is_default"`
}

// VideoStream describes one video track, carrying the fields the
// resolution extractor needs to bin height into a tier and detect
// HDR/Dolby Vision.
type VideoStream struct {
	Height        int    `json:"height"`
	Width         int    `json:"width"`
	VideoRange    string `json:"video_range"`     // e.g. "SDR", "HDR10", "HDR10+"
	VideoRangeType string `json:"video_range_type"`
	Title         string `json:"title"`
}

// TmdbID returns the TMDB provider id for the media record, or "" if
// absent.
func (m MediaRecord) TmdbID() string {
	return m.ProviderIDs["Tmdb"]
}

// ImdbID returns the IMDB provider id for the media record, or "" if
// absent.
func (m MediaRecord) ImdbID() string {
	return m.ProviderIDs["Imdb"]
}
