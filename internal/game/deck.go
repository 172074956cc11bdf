package game

import "quiz-room-service/internal/domain"

// QuestionDeck wraps an ordered question sequence with a monotone cursor.
// The cursor only ever moves forward, one position per Advance; cursor == len
// is the terminal "no more questions" state.
type QuestionDeck struct {
	questions []domain.Question
	cursor    int
}

func NewQuestionDeck(questions []domain.Question) *QuestionDeck {
	return &QuestionDeck{questions: questions}
}

// Current returns the question under the cursor.
func (d *QuestionDeck) Current() (domain.Question, error) {
	if d.cursor >= len(d.questions) {
		return domain.Question{}, domain.ErrOutOfRange
	}
	return d.questions[d.cursor], nil
}

// Advance moves the cursor forward by exactly one position.
func (d *QuestionDeck) Advance() {
	if d.cursor < len(d.questions) {
		d.cursor++
	}
}

// Finished reports whether the cursor has moved past the last question.
func (d *QuestionDeck) Finished() bool {
	return d.cursor >= len(d.questions)
}

// IsCorrect compares a candidate against the current question's answer key.
func (d *QuestionDeck) IsCorrect(answer string) bool {
	current, err := d.Current()
	if err != nil {
		return false
	}
	return current.CorrectAnswer == answer
}

// Index returns the current cursor position.
func (d *QuestionDeck) Index() int {
	return d.cursor
}

// Len returns the total number of questions in the deck.
func (d *QuestionDeck) Len() int {
	return len(d.questions)
}
