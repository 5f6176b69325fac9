package backend

import (
	"context"
	"encoding/json"
	"strings"

	"MediChat/internal/store"
)

// Scripted walks a fixed triage: two follow-up questions, then a diagnosis
// picked by keyword, then plain-text replies. It needs no network and is
// deterministic for a given history.
type Scripted struct{}

// NewScripted creates the offline generator
func NewScripted() *Scripted {
	return &Scripted{}
}

func (s *Scripted) Name() string {
	return "scripted"
}

type scriptedQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type scriptedDiagnosis struct {
	Diagnosis   string   `json:"diagnosis"`
	Explanation string   `json:"explanation"`
	Resources   []string `json:"resources,omitempty"`
}

var scriptedQuestions = []scriptedQuestion{
	{Question: "How long have you had these symptoms?", Options: []string{"Less than a day", "A few days", "More than a week"}},
	{Question: "Do you have a fever?", Options: []string{"Yes", "No", "Not sure"}},
}

var scriptedDiagnoses = []struct {
	keywords  []string
	diagnosis scriptedDiagnosis
}{
	{
		keywords: []string{"headache", "head", "migraine"},
		diagnosis: scriptedDiagnosis{
			Diagnosis:   "Tension-type headache",
			Explanation: "Your answers match a common tension-type headache. Rest, fluids and over-the-counter pain relief usually help.",
			Resources:   []string{"https://www.cdc.gov/migraine/index.html"},
		},
	},
	{
		keywords: []string{"cough", "throat", "sneeze", "cold"},
		diagnosis: scriptedDiagnosis{
			Diagnosis:   "Common cold",
			Explanation: "Your symptoms are typical of a viral upper respiratory infection.",
			Resources:   []string{"https://www.cdc.gov/common-cold/index.html", "https://www.cdc.gov/flu/index.html"},
		},
	},
	{
		keywords: []string{"stomach", "nausea", "vomit", "diarrhea"},
		diagnosis: scriptedDiagnosis{
			Diagnosis:   "Gastroenteritis",
			Explanation: "Stomach upset with these answers is most often a short-lived infection. Keep hydrated.",
		},
	},
}

var fallbackDiagnosis = scriptedDiagnosis{
	Diagnosis:   "Non-specific symptoms",
	Explanation: "Your answers do not point to a single condition. Please consult a healthcare professional.",
}

const scriptedClosing = "If your symptoms get worse, please contact a healthcare professional."

// Generate returns the next step of the script for the user turns so far
func (s *Scripted) Generate(_ context.Context, _ string, history []store.Message) (string, error) {
	var userTurns []string
	for _, msg := range history {
		if msg.Role == RoleUser {
			userTurns = append(userTurns, msg.Content)
		}
	}

	step := len(userTurns) - 1
	switch {
	case step < 0:
		return scriptedClosing, nil
	case step < len(scriptedQuestions):
		return marshalScripted(scriptedQuestions[step])
	case step == len(scriptedQuestions):
		return marshalScripted(pickDiagnosis(userTurns))
	default:
		return scriptedClosing, nil
	}
}

func pickDiagnosis(turns []string) scriptedDiagnosis {
	text := strings.ToLower(strings.Join(turns, " "))
	for _, d := range scriptedDiagnoses {
		for _, kw := range d.keywords {
			if strings.Contains(text, kw) {
				return d.diagnosis
			}
		}
	}
	return fallbackDiagnosis
}

func marshalScripted(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
