package personality

// Recorder receives domain observations from the system: emotion
// transitions, stored interactions, engagement scores, tone changes, and
// durable-store health. *metrics.Manager satisfies it. The default
// recorder discards everything.
type Recorder interface {
	RecordEmotionTransition(state string, intensity float64)
	RecordInteraction(interactionType string)
	RecordEngagementScore(score float64)
	RecordToneAdaptation()
	RecordStorageFailure(operation string)
	SetDegradedMode(degraded bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordEmotionTransition(string, float64) {}
func (nopRecorder) RecordInteraction(string)                {}
func (nopRecorder) RecordEngagementScore(float64)           {}
func (nopRecorder) RecordToneAdaptation()                   {}
func (nopRecorder) RecordStorageFailure(string)             {}
func (nopRecorder) SetDegradedMode(bool)                    {}

// WithRecorder attaches a metrics recorder to the system.
func WithRecorder(rec Recorder) Option {
	return func(s *System) {
		if rec != nil {
			s.rec = rec
		}
	}
}
