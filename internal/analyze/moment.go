package analyze

import (
	"encoding/json"
)

// Hook types the analysis prompt asks the model to choose from.
const (
	HookQuestion    = "question"
	HookShock       = "shock"
	HookControversy = "controversy"
	HookEmotion     = "emotion"
	HookHumor       = "humor"
	HookTutorial    = "tutorial"
	HookStory       = "story"
)

// Default values applied when the model omits optional fields.
const (
	defaultViralScore     = 5
	defaultViewPrediction = 10000
)

// Moment is a scored, time-bounded candidate segment selected for clipping.
type Moment struct {
	// StartTime is the moment start in seconds from the beginning of the video.
	StartTime float64 `json:"start_time"`
	// EndTime is the moment end in seconds. Always greater than StartTime and
	// at most StartTime plus the configured clip duration ceiling.
	EndTime float64 `json:"end_time"`
	// Transcript is the exact transcript text covering the moment.
	Transcript string `json:"transcript"`
	// ViralScore rates the moment from 0 to 10.
	ViralScore float64 `json:"viral_score"`
	// Reason explains why the model selected this moment.
	Reason string `json:"reason"`
	// Keywords are 3-5 topical keywords for hashtag generation.
	Keywords []string `json:"keywords"`
	// HookType is one of the hook vocabulary constants.
	HookType string `json:"hook_type"`
	// ViewPrediction is the model's estimated view count.
	ViewPrediction int `json:"view_prediction"`
}

// Duration returns the moment length in seconds.
func (m Moment) Duration() float64 {
	return m.EndTime - m.StartTime
}

// rawMoment is the loosely-typed shape decoded from model output.
// Pointer fields distinguish missing values from zero values.
type rawMoment struct {
	StartTime      *float64 `json:"start_time"`
	EndTime        *float64 `json:"end_time"`
	Transcript     string   `json:"transcript"`
	ViralScore     *float64 `json:"viral_score"`
	Reason         string   `json:"reason"`
	Keywords       []string `json:"keywords"`
	HookType       string   `json:"hook_type"`
	ViewPrediction *float64 `json:"view_prediction"`
}

// normalizeMoment coerces a single raw JSON element into a Moment.
// It returns false when a required field is missing or cannot be coerced;
// such elements are skipped by the caller, not fatal to the batch.
func normalizeMoment(raw json.RawMessage, maxClipDuration float64) (Moment, bool) {
	var rm rawMoment
	if err := json.Unmarshal(raw, &rm); err != nil {
		return Moment{}, false
	}
	if rm.StartTime == nil || rm.EndTime == nil {
		return Moment{}, false
	}

	start := *rm.StartTime
	if start < 0 {
		start = 0
	}
	end := *rm.EndTime
	if maxEnd := start + maxClipDuration; end > maxEnd {
		end = maxEnd
	}
	if end <= start {
		return Moment{}, false
	}

	score := float64(defaultViralScore)
	if rm.ViralScore != nil {
		score = *rm.ViralScore
	}
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	views := defaultViewPrediction
	if rm.ViewPrediction != nil && *rm.ViewPrediction > 0 {
		views = int(*rm.ViewPrediction)
	}

	hook := rm.HookType
	if hook == "" {
		hook = HookStory
	}

	keywords := rm.Keywords
	if keywords == nil {
		keywords = []string{}
	}

	return Moment{
		StartTime:      start,
		EndTime:        end,
		Transcript:     rm.Transcript,
		ViralScore:     score,
		Reason:         rm.Reason,
		Keywords:       keywords,
		HookType:       hook,
		ViewPrediction: views,
	}, true
}
