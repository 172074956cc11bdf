package domain

// PowerUps is the set of named per-player modifiers selectable before game start.
type PowerUps map[string]bool

// DefaultPowerUps returns the modifier set with nothing enabled.
func DefaultPowerUps() PowerUps {
	return PowerUps{
		"halve":       false,
		"doubleScore": false,
		"chatGPT":     false,
	}
}

// Clone returns an independent copy so each player can hold their own set.
func (p PowerUps) Clone() PowerUps {
	if p == nil {
		return nil
	}
	out := make(PowerUps, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Player is a roster entry. Username is the identity key within a room;
// ConnID is an opaque transport reference, rebindable on reconnect.
type Player struct {
	Username string   `json:"username"`
	Score    int      `json:"score"`
	PowerUps PowerUps `json:"powerUps,omitempty"`
	ConnID   string   `json:"-"`
}

// Question is immutable once loaded.
type Question struct {
	ID            string   `json:"id"`
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
}

// QuestionSet is an ordered sequence of questions addressable by id.
type QuestionSet struct {
	ID        string     `json:"id"`
	Questions []Question `json:"questions"`
}

// AnswerRecord snapshots one submission for the end-of-game report.
// Points is the player's cumulative score at the moment of recording.
type AnswerRecord struct {
	UserAnswer    string `json:"userAnswer"`
	QuestionID    string `json:"qid"`
	Time          int    `json:"time"`
	CorrectAnswer string `json:"correctAnswer"`
	Points        int    `json:"point"`
}

// UnansweredRecord is the placeholder reported for (player, question) pairs
// with no submission.
func UnansweredRecord() AnswerRecord {
	return AnswerRecord{Time: 30}
}

// AnswerSubmission is the scoring signal from a client. Factor is the
// client-reported elapsed-time value in 0..30; it is not verified server-side.
type AnswerSubmission struct {
	Answer      string `json:"answer"`
	OptionIndex int    `json:"optionIndex"`
	Factor      int    `json:"factor"`
	DoubleScore bool   `json:"doubleScore"`
}

// AnswerResult is broadcast to the room after every submission.
type AnswerResult struct {
	Username    string `json:"username"`
	Correct     bool   `json:"correct"`
	OptionIndex int    `json:"optionIndex"`
	Score       int    `json:"score"`
	Responses   int    `json:"responses"`
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

// Leaderboard is the scoreboard ordered by score descending; ties keep join order.
type Leaderboard struct {
	RoomID  string             `json:"roomId"`
	Entries []LeaderboardEntry `json:"entries"`
}

// Progress reports how far through the question set a room is.
// CurrentQuestion is 1-based for display.
type Progress struct {
	TotalQuestions  int `json:"totalQuestions"`
	CurrentQuestion int `json:"currentQuestion"`
}

// QuestionView pairs a question with the requesting player's power-ups.
type QuestionView struct {
	Question Question `json:"question"`
	PowerUps PowerUps `json:"powerUps"`
}

// GameReport is the tabulated end-of-game summary. Every player has an entry
// for every question index, zero-filled when they never answered.
type GameReport struct {
	SessionID string                          `json:"sessionId"`
	Usernames []string                        `json:"usernames"`
	Scores    map[string]int                  `json:"scoreByUsername"`
	Answers   map[string]map[int]AnswerRecord `json:"answersByUsername"`
}

// Event is a message published to every subscriber of a room.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}
