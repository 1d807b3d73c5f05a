package domain

import "time"

// AttemptScore is the scored outcome of one section attempt.
type AttemptScore struct {
	TestAttemptID     string `json:"testAttemptId"`
	TestSectionID     string `json:"testSectionId"`
	TotalScore        int    `json:"totalScore"`
	MaxPossibleScore  int    `json:"maxPossibleScore"`
	Percentage        int    `json:"percentage"`
	CorrectAnswers    int    `json:"correctAnswers"`
	AnsweredQuestions int    `json:"answeredQuestions"`
	TotalQuestions    int    `json:"totalQuestions"`
}

// ParticipantScore aggregates a participant's finished attempts for a test.
type ParticipantScore struct {
	TestID           string         `json:"testId"`
	ParticipantID    string         `json:"participantId"`
	TotalScore       int            `json:"totalScore"`
	MaxPossibleScore int            `json:"maxPossibleScore"`
	Percentage       int            `json:"percentage"`
	IsCompleted      bool           `json:"isCompleted"`
	Attempts         []AttemptScore `json:"attempts"`
}

// Progress is the live submission overview of a test.
type Progress struct {
	TotalParticipants int     `json:"totalParticipants"`
	Submissions       int     `json:"submissions"`
	WorkingInProgress int     `json:"workingInProgress"`
	AverageTime       float64 `json:"averageTime"` // seconds
	CompletionRate    int     `json:"completitionRate"`
}

// ParticipantResult is one row of the results table.
type ParticipantResult struct {
	ParticipantID    string     `json:"participantId"`
	TotalScore       int        `json:"totalScore"`
	MaxPossibleScore int        `json:"maxPossibleScore"`
	Percentage       int        `json:"percentage"`
	IsCompleted      bool       `json:"isCompleted"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
	AttemptCount     int        `json:"attemptCount"`
}

// OptionSummary counts how many respondents picked an option.
type OptionSummary struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
	Count     int    `json:"count"`
}

// QuestionSummary is the selection histogram of one question.
type QuestionSummary struct {
	QuestionID     string          `json:"questionId"`
	Order          int             `json:"order"`
	Question       string          `json:"question"`
	Type           QuestionType    `json:"type"`
	TotalResponses int             `json:"totalResponses"`
	Options        []OptionSummary `json:"options"`
}

type ScoreBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// QuestionPerformance is a question's success rate across respondents.
type QuestionPerformance struct {
	QuestionID    string  `json:"questionId"`
	TestSectionID string  `json:"testSectionId"`
	Question      string  `json:"question"`
	Order         int     `json:"order"`
	TotalAnswers  int     `json:"totalAnswers"`
	Correct       int     `json:"correct"`
	SuccessRate   float64 `json:"successRate"`
}

type SectionPerformance struct {
	TestSectionID     string  `json:"testSectionId"`
	Title             string  `json:"title"`
	Order             int     `json:"order"`
	AverageScore      float64 `json:"averageScore"`
	CompletedAttempts int     `json:"completedAttempts"`
	TotalAttempts     int     `json:"totalAttempts"`
}

type AnalyticsOverview struct {
	TotalParticipants     int     `json:"totalParticipants"`
	CompletedParticipants int     `json:"completedParticipants"`
	CompletionRate        int     `json:"completionRate"`
	AverageScore          float64 `json:"averageScore"`
	MedianScore           int     `json:"medianScore"`
	HighestScore          int     `json:"highestScore"`
	LowestScore           int     `json:"lowestScore"`
	AverageTime           float64 `json:"averageTime"` // seconds
}

// Analytics is the full dashboard payload of a test.
type Analytics struct {
	Overview           AnalyticsOverview     `json:"overview"`
	ScoreDistribution  []ScoreBucket         `json:"scoreDistribution"`
	HardestQuestions   []QuestionPerformance `json:"hardestQuestions"`
	EasiestQuestions   []QuestionPerformance `json:"easiestQuestions"`
	SectionPerformance []SectionPerformance  `json:"sectionPerformance"`
}
