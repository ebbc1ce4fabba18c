package model_test

import (
	"testing"

	"maukemana-backend/internal/model"
)

func TestJobSourceValid(t *testing.T) {
	tests := []struct {
		source model.JobSource
		want   bool
	}{
		{model.SourceManual, true},
		{model.SourceScheduled, true},
		{model.SourceAPI, true},
		{model.JobSource("bogus"), false},
		{model.JobSource(""), false},
	}
	for _, tt := range tests {
		if got := tt.source.Valid(); got != tt.want {
			t.Errorf("JobSource(%q).Valid() = %v, want %v", tt.source, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	tests := []struct {
		status model.JobStatus
		want   bool
	}{
		{model.JobQueued, false},
		{model.JobProcessing, false},
		{model.JobPaused, false},
		{model.JobCompleted, true},
		{model.JobFailed, true},
		{model.JobCancelled, true},
	}
	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.want {
			t.Errorf("JobStatus(%q).Terminal() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestBadgeTypeValid(t *testing.T) {
	for _, bt := range model.AllBadgeTypes {
		if !bt.Valid() {
			t.Errorf("BadgeType(%q).Valid() = false, want true", bt)
		}
	}
	if model.BadgeType("subtitle").Valid() {
		t.Error("expected an unrecognised badge type to be invalid")
	}
}

func TestBatchJobDone(t *testing.T) {
	tests := []struct {
		name      string
		job       model.BatchJob
		wantDone  bool
	}{
		{"in progress", model.BatchJob{TotalPosters: 5, CompletedPosters: 2, FailedPosters: 1}, false},
		{"all completed", model.BatchJob{TotalPosters: 5, CompletedPosters: 5}, true},
		{"mixed completed and failed", model.BatchJob{TotalPosters: 5, CompletedPosters: 3, FailedPosters: 2}, true},
		{"zero posters", model.BatchJob{TotalPosters: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.job.Done(); got != tt.wantDone {
				t.Errorf("Done() = %v, want %v", got, tt.wantDone)
			}
		})
	}
}

func TestPosterStateCanTransitionTo(t *testing.T) {
	tests := []struct {
		from model.PosterState
		to   model.PosterState
		want bool
	}{
		{model.PosterPending, model.PosterProcessing, true},
		{model.PosterPending, model.PosterCompleted, false},
		{model.PosterProcessing, model.PosterCompleted, true},
		{model.PosterProcessing, model.PosterFailed, true},
		{model.PosterProcessing, model.PosterRetrying, true},
		{model.PosterProcessing, model.PosterPending, false},
		{model.PosterRetrying, model.PosterProcessing, true},
		{model.PosterRetrying, model.PosterCompleted, false},
		{model.PosterCompleted, model.PosterProcessing, false},
		{model.PosterFailed, model.PosterProcessing, false},
	}
	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%q.CanTransitionTo(%q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestNotApplicable(t *testing.T) {
	payload := model.NotApplicable(model.BadgeAudio)
	if payload.Applicable {
		t.Error("expected Applicable = false")
	}
	if payload.Type != model.BadgeAudio {
		t.Errorf("Type = %q, want %q", payload.Type, model.BadgeAudio)
	}
}

func TestMediaRecordProviderIDHelpers(t *testing.T) {
	record := model.MediaRecord{ProviderIDs: map[string]string{"Tmdb": "603", "Imdb": "tt0133093"}}
	if got := record.TmdbID(); got != "603" {
		t.Errorf("TmdbID() = %q, want %q", got, "603")
	}
	if got := record.ImdbID(); got != "tt0133093" {
		t.Errorf("ImdbID() = %q, want %q", got, "tt0133093")
	}

	empty := model.MediaRecord{}
	if empty.TmdbID() != "" || empty.ImdbID() != "" {
		t.Error("expected empty ids when ProviderIDs is nil")
	}
}
