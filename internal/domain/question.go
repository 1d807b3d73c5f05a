package domain

import "time"

// QuestionType enumerates the supported question formats.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple-choice"
	QuestionYesOrNo        QuestionType = "yes-or-no"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionTextField      QuestionType = "text-field"
	QuestionFileUpload     QuestionType = "file-upload"
	QuestionAudioResponse  QuestionType = "audio-response"
	QuestionVideoResponse  QuestionType = "video-response"
	QuestionRanking        QuestionType = "ranking"
	QuestionSliderScale    QuestionType = "slider-scale"
	QuestionDatePicker     QuestionType = "date-picker"
	QuestionMatchingPairs  QuestionType = "matching-pairs"
)

var knownQuestionTypes = map[QuestionType]bool{
	QuestionMultipleChoice: true,
	QuestionYesOrNo:        true,
	QuestionDropdown:       true,
	QuestionTextField:      true,
	QuestionFileUpload:     true,
	QuestionAudioResponse:  true,
	QuestionVideoResponse:  true,
	QuestionRanking:        true,
	QuestionSliderScale:    true,
	QuestionDatePicker:     true,
	QuestionMatchingPairs:  true,
}

func (t QuestionType) Valid() bool { return knownQuestionTypes[t] }

// IsChoice reports whether the type carries options and can be auto-graded.
func (t QuestionType) IsChoice() bool {
	switch t {
	case QuestionMultipleChoice, QuestionYesOrNo, QuestionDropdown:
		return true
	}
	return false
}

// Option is one selectable answer of a choice question.
type Option struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

// Question belongs to either a test section or a question bank (ReferenceID).
// Order is dense 1..N among the non-deleted questions of a reference.
type Question struct {
	ID                   string       `json:"id"`
	ReferenceID          string       `json:"referenceId"`
	OrganizationID       string       `json:"organizationId"`
	Type                 QuestionType `json:"type"`
	Question             string       `json:"question"`
	Options              []Option     `json:"options,omitempty"`
	AllowMultipleAnswers bool         `json:"allowMultipleAnswers"`
	Order                int          `json:"order"`
	PointValue           *int         `json:"pointValue,omitempty"` // defaults to 1 when nil
	OriginalReferenceID  string       `json:"originalReferenceId,omitempty"`
	DeletedAt            *time.Time   `json:"deletedAt,omitempty"`
	CreatedAt            time.Time    `json:"createdAt"`
}

func (q Question) IsDeleted() bool { return q.DeletedAt != nil }

// Points returns the score awarded for a correct answer.
func (q Question) Points() int {
	if q.PointValue == nil {
		return 1
	}
	return *q.PointValue
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, opt := range q.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy so callers can mutate options without aliasing.
func (q Question) Clone() Question {
	out := q
	if q.Options != nil {
		out.Options = append([]Option(nil), q.Options...)
	}
	if q.PointValue != nil {
		v := *q.PointValue
		out.PointValue = &v
	}
	return out
}
