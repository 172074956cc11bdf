package game

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"quiz-room-service/internal/domain"
)

const (
	// MaxPlayers caps the roster size of a single room.
	MaxPlayers = 100
	// CountdownTicks is the number of one-second ticks before the game view opens.
	CountdownTicks = 5
	// DefaultTimeLimit is the per-question limit when the host sends none.
	DefaultTimeLimit = 30
	// defaultTallySize is used before a question with options is active.
	defaultTallySize = 4
	// SettleDelay lets clients show the per-question review before the next
	// question or the final signal is broadcast.
	SettleDelay = 4500 * time.Millisecond
	// LeaderboardDelay spaces the results reveal from the leaderboard navigation.
	LeaderboardDelay = 2500 * time.Millisecond
)

// Room is the session aggregate: roster, host, question deck, per-question
// answer state, full answer history and the two session timers. All mutation
// goes through the room mutex; timer goroutines take the same lock, so
// handlers stay short and never block.
type Room struct {
	id    string
	clock clockwork.Clock

	mu          sync.Mutex
	phase       Phase
	players     []*domain.Player
	host        *domain.Player
	deck        *QuestionDeck
	timeLimit   int
	answers     map[string]string
	tally       []int
	answerCount int
	history     map[string]map[int]domain.AnswerRecord

	countdownRemaining int
	questionRemaining  int
	countdownStop      chan struct{}
	questionStop       chan struct{}

	subscribers map[chan domain.Event]struct{}
	closed      bool
}

func NewRoom(id string, clock clockwork.Clock) *Room {
	return &Room{
		id:          id,
		clock:       clock,
		phase:       PhaseLobby,
		answers:     make(map[string]string),
		tally:       make([]int, defaultTallySize),
		history:     make(map[string]map[int]domain.AnswerRecord),
		subscribers: make(map[chan domain.Event]struct{}),
	}
}

// ID returns the host-chosen room identifier.
func (r *Room) ID() string {
	return r.id
}

// Phase returns the current lifecycle state.
func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// SetHost designates the room's host; set once at creation.
func (r *Room) SetHost(player *domain.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.host == nil {
		r.host = player
	}
}

// Host returns the designated host, or nil.
func (r *Room) Host() *domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.host
}

// AddPlayer appends a player to the roster and broadcasts the new roster.
// The stored player is returned so callers can rebind its connection later.
func (r *Room) AddPlayer(player *domain.Player) (*domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.players) >= MaxPlayers {
		return nil, domain.ErrRoomFull
	}
	if r.findPlayerLocked(player.Username) != nil {
		return nil, domain.ErrDuplicateUsername
	}
	if player.PowerUps == nil {
		player.PowerUps = domain.DefaultPowerUps()
	}
	r.players = append(r.players, player)
	r.publishLocked(domain.Event{Type: EventRoster, Payload: r.rosterLocked()})
	return player, nil
}

// RemovePlayer removes a roster entry by username; no-op if absent.
// The player's answer history is kept for the end-of-game report.
func (r *Room) RemovePlayer(username string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, p := range r.players {
		if p.Username == username {
			r.players = append(r.players[:i], r.players[i+1:]...)
			r.publishLocked(domain.Event{Type: EventRoster, Payload: r.rosterLocked()})
			return
		}
	}
}

// Rebind points an existing player at a new connection after a reconnect.
func (r *Room) Rebind(username, connID string) (*domain.Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	player := r.findPlayerLocked(username)
	if player == nil {
		return nil, domain.ErrPlayerNotFound
	}
	player.ConnID = connID
	return player, nil
}

// Roster returns a snapshot of the players in join order.
func (r *Room) Roster() []domain.Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rosterLocked()
}

func (r *Room) rosterLocked() []domain.Player {
	out := make([]domain.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, *p)
	}
	return out
}

func (r *Room) findPlayerLocked(username string) *domain.Player {
	for _, p := range r.players {
		if p.Username == username {
			return p
		}
	}
	return nil
}

// IsEmpty reports whether the roster is empty.
func (r *Room) IsEmpty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

// StartCountdown (re)starts the pre-game countdown. A countdown already in
// flight is cancelled first, so re-triggering never stacks timers.
func (r *Room) StartCountdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.stopCountdownLocked()
	r.phase = PhaseCountdown
	r.countdownRemaining = CountdownTicks
	stop := make(chan struct{})
	r.countdownStop = stop
	ticker := r.clock.NewTicker(time.Second)
	go r.runTicker(ticker, stop, r.countdownTick)
}

// StartGame assigns the question deck, records the time limit and hands every
// player the host-selected power-ups. A second call is rejected: the deck is
// never replaced for the room's lifetime.
func (r *Room) StartGame(questions []domain.Question, timeLimit int, options domain.PowerUps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck != nil {
		return domain.ErrGameAlreadyStarted
	}
	if len(questions) == 0 {
		return domain.ErrQuestionSetNotFound
	}
	r.stopCountdownLocked()
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	r.timeLimit = timeLimit
	r.questionRemaining = timeLimit
	r.deck = NewQuestionDeck(questions)
	if options != nil {
		for _, p := range r.players {
			p.PowerUps = options.Clone()
		}
	}
	r.resetTallyLocked()
	r.phase = PhaseQuestionActive
	log.Info().Str("room", r.id).Int("questions", len(questions)).Int("timeLimit", timeLimit).Msg("game started")
	return nil
}

// AnnounceStart flips waiting-room clients into the game view.
func (r *Room) AnnounceStart() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(domain.Event{Type: EventGameStarting})
}

// StartQuestionTimer (re)starts the per-question countdown from the
// host-configured time limit. Restart is idempotent, never stacked.
func (r *Room) StartQuestionTimer() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	if r.deck == nil || r.deck.Finished() {
		return domain.ErrNoActiveQuestion
	}
	r.stopQuestionTimerLocked()
	r.phase = PhaseQuestionActive
	r.questionRemaining = r.timeLimit
	stop := make(chan struct{})
	r.questionStop = stop
	ticker := r.clock.NewTicker(time.Second)
	go r.runTicker(ticker, stop, r.questionTick)
	return nil
}

// runTicker drives one repeating timer until its stop channel closes or the
// tick handler reports completion.
func (r *Room) runTicker(ticker clockwork.Ticker, stop chan struct{}, tick func(chan struct{}) bool) {
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			if !tick(stop) {
				return
			}
		}
	}
}

func (r *Room) countdownTick(stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.countdownStop != stop {
		// A restart replaced this timer between the tick firing and the lock.
		return false
	}
	r.countdownRemaining--
	if r.countdownRemaining <= 0 {
		r.countdownStop = nil
		r.publishLocked(domain.Event{Type: EventCountdownFinished})
		return false
	}
	r.publishLocked(domain.Event{Type: EventCountdownTick, Payload: r.countdownRemaining})
	return true
}

func (r *Room) questionTick(stop chan struct{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.questionStop != stop {
		// The question was already closed by an all-answered submission.
		return false
	}
	r.questionRemaining--
	if r.questionRemaining <= 0 {
		r.closeQuestionLocked()
		return false
	}
	r.publishLocked(domain.Event{Type: EventQuestionTimerTick, Payload: r.questionRemaining})
	return true
}

// closeQuestionLocked is the single close gate for the timer-vs-all-answered
// race. The phase check makes the second trigger a no-op.
func (r *Room) closeQuestionLocked() {
	if r.phase != PhaseQuestionActive {
		return
	}
	r.stopQuestionTimerLocked()
	r.phase = PhaseQuestionClosed
	r.questionRemaining = r.timeLimit
	r.publishLocked(domain.Event{Type: EventShowResults})
	log.Debug().Str("room", r.id).Int("question", r.deck.Index()).Msg("question closed")
}

func (r *Room) stopCountdownLocked() {
	if r.countdownStop != nil {
		close(r.countdownStop)
		r.countdownStop = nil
	}
}

func (r *Room) stopQuestionTimerLocked() {
	if r.questionStop != nil {
		close(r.questionStop)
		r.questionStop = nil
	}
}

// CurrentQuestion returns the active question together with the requesting
// player's power-ups; unknown usernames get the all-false default set.
func (r *Room) CurrentQuestion(username string) (domain.QuestionView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck == nil {
		return domain.QuestionView{}, domain.ErrNoActiveQuestion
	}
	question, err := r.deck.Current()
	if err != nil {
		return domain.QuestionView{}, err
	}
	powerUps := domain.DefaultPowerUps()
	if player := r.findPlayerLocked(username); player != nil {
		powerUps = player.PowerUps.Clone()
	}
	return domain.QuestionView{Question: question, PowerUps: powerUps}, nil
}

// SubmitAnswer records an answer for the current question. A later submission
// from the same player overwrites the earlier one. Incorrect answers award
// nothing but still count toward all-answered. When the last outstanding
// player answers, the question closes through the same gate as the timer.
func (r *Room) SubmitAnswer(username string, sub domain.AnswerSubmission) (domain.AnswerResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck == nil || r.deck.Finished() {
		return domain.AnswerResult{}, domain.ErrNoActiveQuestion
	}
	player := r.findPlayerLocked(username)
	if player == nil {
		return domain.AnswerResult{}, domain.ErrPlayerNotFound
	}
	question, err := r.deck.Current()
	if err != nil {
		return domain.AnswerResult{}, err
	}

	if sub.OptionIndex >= 0 && sub.OptionIndex < len(r.tally) {
		r.tally[sub.OptionIndex]++
	}
	r.answerCount++

	correct := r.deck.IsCorrect(sub.Answer)
	if correct {
		award := 100 * sub.Factor / r.timeLimit
		if sub.DoubleScore {
			award *= 2
		}
		player.Score += award
	}

	r.answers[username] = sub.Answer
	if r.history[username] == nil {
		r.history[username] = make(map[int]domain.AnswerRecord)
	}
	r.history[username][r.deck.Index()] = domain.AnswerRecord{
		UserAnswer:    sub.Answer,
		QuestionID:    question.ID,
		Time:          sub.Factor,
		CorrectAnswer: question.CorrectAnswer,
		Points:        player.Score,
	}

	result := domain.AnswerResult{
		Username:    username,
		Correct:     correct,
		OptionIndex: sub.OptionIndex,
		Score:       player.Score,
		Responses:   r.answerCount,
	}
	r.publishLocked(domain.Event{Type: EventAnswerSubmitted, Payload: result})

	if r.allAnsweredLocked() {
		r.closeQuestionLocked()
	}
	return result, nil
}

// AllAnswered reports whether every current player has answered the current question.
func (r *Room) AllAnswered() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.allAnsweredLocked()
}

func (r *Room) allAnsweredLocked() bool {
	return len(r.players) > 0 && len(r.answers) == len(r.players)
}

// NextQuestion advances the cursor and clears all per-question state in the
// same critical section, so no stale answer can bleed into the new question.
// After the settle delay either the next question or the last-question signal
// is broadcast.
func (r *Room) NextQuestion() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck == nil {
		return domain.ErrNoActiveQuestion
	}
	r.stopQuestionTimerLocked()
	r.deck.Advance()
	r.answers = make(map[string]string)
	r.answerCount = 0
	r.resetTallyLocked()

	if r.deck.Finished() {
		r.phase = PhaseFinished
		r.clock.AfterFunc(SettleDelay, func() {
			r.publish(domain.Event{Type: EventLastQuestion})
		})
		return nil
	}

	r.phase = PhaseQuestionActive
	question, err := r.deck.Current()
	if err != nil {
		return err
	}
	r.clock.AfterFunc(SettleDelay, func() {
		r.publish(domain.Event{Type: EventNextQuestion, Payload: question})
	})
	return nil
}

func (r *Room) resetTallyLocked() {
	size := defaultTallySize
	if r.deck != nil {
		if q, err := r.deck.Current(); err == nil && len(q.Options) > 0 {
			size = len(q.Options)
		}
	}
	r.tally = make([]int, size)
}

// Tally returns the per-option submission counts for the current question.
func (r *Room) Tally() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int, len(r.tally))
	copy(out, r.tally)
	return out
}

// Progress reports the deck size and the 1-based current question number.
func (r *Room) Progress() (domain.Progress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck == nil {
		return domain.Progress{}, domain.ErrNoActiveQuestion
	}
	return domain.Progress{
		TotalQuestions:  r.deck.Len(),
		CurrentQuestion: r.deck.Index() + 1,
	}, nil
}

// PowerUps returns the player's modifier set; unknown usernames get the default.
func (r *Room) PowerUps(username string) domain.PowerUps {
	r.mu.Lock()
	defer r.mu.Unlock()
	if player := r.findPlayerLocked(username); player != nil {
		return player.PowerUps.Clone()
	}
	return domain.DefaultPowerUps()
}

// UpdatePowerUps replaces a player's modifier set before game start.
func (r *Room) UpdatePowerUps(username string, powerUps domain.PowerUps) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	player := r.findPlayerLocked(username)
	if player == nil {
		return domain.ErrPlayerNotFound
	}
	player.PowerUps = powerUps.Clone()
	return nil
}

// Leaderboard returns players sorted by score descending; ties keep join order.
func (r *Room) Leaderboard() domain.Leaderboard {
	r.mu.Lock()
	defer r.mu.Unlock()
	entries := make([]domain.LeaderboardEntry, 0, len(r.players))
	for _, p := range r.players {
		entries = append(entries, domain.LeaderboardEntry{Username: p.Username, Score: p.Score})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score > entries[j].Score
	})
	return domain.Leaderboard{RoomID: r.id, Entries: entries}
}

// ScheduleLeaderboard broadcasts the navigate-to-leaderboard signal after the
// reveal delay.
func (r *Room) ScheduleLeaderboard() {
	r.clock.AfterFunc(LeaderboardDelay, func() {
		r.publish(domain.Event{Type: EventShowLeaderboard})
	})
}

// SetResultsURL propagates the externally generated results page to the room.
func (r *Room) SetResultsURL(url string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(domain.Event{Type: EventResultsURL, Payload: url})
}

// Report tabulates the end-of-game summary with one record per
// (player, question index) pair, zero-filled where a player never answered.
func (r *Room) Report() (domain.GameReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.deck == nil {
		return domain.GameReport{}, domain.ErrNoActiveQuestion
	}
	report := domain.GameReport{
		SessionID: r.id,
		Usernames: make([]string, 0, len(r.players)),
		Scores:    make(map[string]int, len(r.players)),
		Answers:   make(map[string]map[int]domain.AnswerRecord, len(r.players)),
	}
	for _, p := range r.players {
		report.Usernames = append(report.Usernames, p.Username)
		report.Scores[p.Username] = p.Score
		perQuestion := make(map[int]domain.AnswerRecord, r.deck.Len())
		for i := 0; i < r.deck.Len(); i++ {
			if record, ok := r.history[p.Username][i]; ok {
				perQuestion[i] = record
			} else {
				perQuestion[i] = domain.UnansweredRecord()
			}
		}
		report.Answers[p.Username] = perQuestion
	}
	return report, nil
}

// Subscribe returns a channel receiving every event published to the room.
// The caller must invoke the returned cancel function to avoid leaks.
func (r *Room) Subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 16)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	r.subscribers[ch] = struct{}{}
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Close broadcasts nothing; it cancels the room's timers and closes every
// subscriber channel. Further publishes are dropped.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.stopCountdownLocked()
	r.stopQuestionTimerLocked()
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}

func (r *Room) publish(event domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publishLocked(event)
}

func (r *Room) publishLocked(event domain.Event) {
	if r.closed {
		return
	}
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Drop the oldest pending event so a slow client cannot block the room.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

// PublishHostLeft tells the room its host is gone before teardown.
func (r *Room) PublishHostLeft() {
	r.publish(domain.Event{Type: EventHostLeft})
}
