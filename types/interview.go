package types

// Interview is the generated pre-screening interview for a vacancy.
type Interview struct {
	Intro                  string              `json:"intro,omitempty"`
	KnockoutQuestions      []InterviewQuestion `json:"knockout_questions,omitempty"`
	QualificationQuestions []InterviewQuestion `json:"qualification_questions,omitempty"`
	Outro                  string              `json:"outro,omitempty"`
}

// QuestionCount returns the total number of questions across both sections.
func (i *Interview) QuestionCount() int {
	if i == nil {
		return 0
	}
	return len(i.KnockoutQuestions) + len(i.QualificationQuestions)
}

// InterviewQuestion is a single interview question.
type InterviewQuestion struct {
	ID          string `json:"id"`
	Question    string `json:"question"`
	IdealAnswer string `json:"ideal_answer,omitempty"`
}

// InterviewResult is the aggregated result of a generation or feedback stream.
type InterviewResult struct {
	Interview *Interview `json:"interview,omitempty"`
	SessionID string     `json:"session_id"`
	Message   string     `json:"message,omitempty"`
}

// GenerateRequest is the body of POST /interview/generate.
type GenerateRequest struct {
	VacancyID   string `json:"vacancy_id,omitempty"`
	VacancyText string `json:"vacancy_text,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
}

// FeedbackRequest is the body of POST /interview/feedback.
type FeedbackRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// ReorderRequest is the body of POST /interview/reorder.
type ReorderRequest struct {
	SessionID   string   `json:"session_id"`
	QuestionIDs []string `json:"question_ids"`
}
