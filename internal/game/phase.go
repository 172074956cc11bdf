package game

// Phase is the room lifecycle state. Transitions only move forward within a
// question cycle; QuestionClosed loops back to QuestionActive until the deck
// runs out.
type Phase int

const (
	PhaseLobby Phase = iota
	PhaseCountdown
	PhaseQuestionActive
	PhaseQuestionClosed
	PhaseFinished
)

func (p Phase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseCountdown:
		return "countdown"
	case PhaseQuestionActive:
		return "questionActive"
	case PhaseQuestionClosed:
		return "questionClosed"
	case PhaseFinished:
		return "finished"
	default:
		return "unknown"
	}
}
