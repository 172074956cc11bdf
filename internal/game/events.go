package game

// Outbound event types published to room subscribers. The transport layer
// forwards these verbatim as the "type" field of its JSON frames.
const (
	EventRoster            = "roster"
	EventGameStarting      = "gameStarting"
	EventCountdownTick     = "countdownTick"
	EventCountdownFinished = "countdownFinished"
	EventQuestionTimerTick = "questionTimerTick"
	EventAnswerSubmitted   = "answerSubmitted"
	EventShowResults       = "showResults"
	EventNextQuestion      = "nextQuestion"
	EventLastQuestion      = "lastQuestion"
	EventShowLeaderboard   = "showLeaderboard"
	EventResultsURL        = "resultsUrl"
	EventHostLeft          = "hostLeft"
)
