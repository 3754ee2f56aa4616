package recommend

import (
	"github.com/moodlens/moodlens-backend/internal/emotion"
)

func minutes(m float64) *float64 {
	return &m
}

var fallbackTable = map[emotion.Label][]Recommendation{
	emotion.Happy: {
		{ID: "1", Type: Affirmation, Title: "Embrace the Joy", Description: "Take a moment to appreciate what's making you happy right now.", Priority: 1},
		{ID: "2", Type: Stretch, Title: "Energizing Stretch", Description: "Channel your positive energy with a quick stretch routine.", Duration: minutes(5), Priority: 2},
	},
	emotion.Sad: {
		{ID: "3", Type: Breathing, Title: "Calming Breaths", Description: "Deep breathing can help ease sadness and bring clarity.", Duration: minutes(4), Priority: 1},
		{ID: "4", Type: Affirmation, Title: "Self-Compassion", Description: "Remember: It's okay to feel this way. You are doing your best.", Priority: 2},
	},
	emotion.Angry: {
		{ID: "5", Type: Breathing, Title: "Cool Down Breaths", Description: "Slow, deep breaths can help release tension and anger.", Duration: minutes(5), Priority: 1},
		{ID: "6", Type: Break, Title: "Take a Break", Description: "Step away for a moment. A short walk can help clear your mind.", Duration: minutes(10), Priority: 2},
	},
	emotion.Neutral: {
		{ID: "7", Type: Meditation, Title: "Mindful Moment", Description: "Use this calm state for a brief mindfulness practice.", Duration: minutes(5), Priority: 1},
		{ID: "8", Type: Stretch, Title: "Gentle Movement", Description: "Light stretching can help maintain your balanced state.", Duration: minutes(3), Priority: 2},
	},
	emotion.Fearful: {
		{ID: "9", Type: Breathing, Title: "Grounding Breaths", Description: "Focus on your breath to feel more grounded and secure.", Duration: minutes(5), Priority: 1},
		{ID: "10", Type: Affirmation, Title: "You Are Safe", Description: "Remind yourself: You are safe in this moment. This feeling will pass.", Priority: 2},
	},
	emotion.Surprised: {
		{ID: "11", Type: Breathing, Title: "Centering Breaths", Description: "Take a moment to center yourself after the surprise.", Duration: minutes(3), Priority: 1},
		{ID: "12", Type: Break, Title: "Process the Moment", Description: "Give yourself time to process what just happened.", Duration: minutes(5), Priority: 2},
	},
	emotion.Disgusted: {
		{ID: "13", Type: Breathing, Title: "Fresh Start", Description: "Clear your mind with calming breaths.", Duration: minutes(4), Priority: 1},
		{ID: "14", Type: Break, Title: "Change of Scenery", Description: "A brief change of environment can help shift your mood.", Duration: minutes(5), Priority: 2},
	},
}

// Fallback returns a copy of the static recommendations for label, or those
// for neutral when the label is not recognized.
func Fallback(label emotion.Label) []Recommendation {
	recs, ok := fallbackTable[label]
	if !ok {
		recs = fallbackTable[emotion.Neutral]
	}

	out := make([]Recommendation, len(recs))
	for i, r := range recs {
		out[i] = r
		if r.Duration != nil {
			out[i].Duration = minutes(*r.Duration)
		}
	}
	return out
}
