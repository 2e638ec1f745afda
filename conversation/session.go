// Package conversation is the turn engine: effect tables, the categorical
// effect resolver, the four-pile hand lifecycle and the session that ties them
// to a flow battery and an atmosphere.
package conversation

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"parley-lite/atmosphere"
	"parley-lite/card"
	"parley-lite/emotion"
)

// ActionType 玩家动作
type ActionType byte

const (
	ActionNone   ActionType = 0
	ActionSpeak  ActionType = 1
	ActionListen ActionType = 2
	ActionLeave  ActionType = 3
)

var ActionTypeDictionary = map[ActionType]string{
	ActionNone:   "NONE",
	ActionSpeak:  "SPEAK",
	ActionListen: "LISTEN",
	ActionLeave:  "LEAVE",
}

func (a ActionType) String() string {
	if name, ok := ActionTypeDictionary[a]; ok {
		return name
	}
	return "UNKNOWN"
}

// NoRoll marks a play that succeeded without rolling.
const NoRoll = -1

// PlayResult 一张牌的结算
type PlayResult struct {
	Card      *card.Instance
	Percent   int
	Roll      int // NoRoll when auto-succeeded
	Succeeded bool
	Effect    EffectResult
}

// TurnResult is what one SPEAK or LISTEN did. Failed plays are ordinary
// results, not errors.
type TurnResult struct {
	Turn   int
	Action ActionType

	Plays      []PlayResult
	FocusSpent int
	FreeSpeak  bool

	Swept   []*card.Instance
	Exhaust []EffectResult
	Drawn   []*card.Instance

	Flow []emotion.FlowResult

	PatienceSpent int
	Ended         bool
	Outcome       *Outcome
}

// Session 一场对话。所有公开方法都加锁，可以被房间 actor 和快照读取方共享。
type Session struct {
	mu sync.Mutex

	id    string
	cfg   Config
	rules *Ruleset
	rng   *rand.Rand
	seed  int64

	resolver *Resolver
	atm      *atmosphere.Manager
	flow     *emotion.FlowBattery
	hand     *HandManager

	patience int
	focus    int
	turn     int

	started bool
	ended   bool
	outcome *Outcome

	totalRapport int
	markers      []Marker
}

func NewSession(cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRuleset()
	}
	rng := cfg.Rand
	seed := cfg.Seed
	if rng == nil {
		if seed == 0 {
			var err error
			if seed, err = NewSeed(); err != nil {
				return nil, err
			}
		}
		rng = NewRand(seed)
	}

	atm := atmosphere.NewManager()
	atm.Set(cfg.Atmosphere)

	s := &Session{
		id:       uuid.NewString(),
		cfg:      cfg,
		rules:    rules,
		rng:      rng,
		seed:     seed,
		resolver: NewResolver(rules),
		atm:      atm,
		flow:     emotion.NewFlowBattery(cfg.InitialState),
		patience: cfg.Patience,
	}
	s.hand = NewHandManager(rules, atm, rng)
	s.hand.SetState(cfg.InitialState)
	s.focus = s.focusCapacity()
	return s, nil
}

func (s *Session) ID() string { return s.id }

// Seed is the seed the session rng was built from; 0 when Config.Rand was
// supplied.
func (s *Session) Seed() int64 { return s.seed }

// Begin shuffles deck into the draw pile and deals the opening hand.
func (s *Session) Begin(deck []card.Card) ([]*card.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil, ErrAlreadyStarted
	}
	s.started = true
	s.hand.InitializeDeck(deck)

	n := s.cfg.OpeningHand
	if n == 0 {
		n = s.rules.DrawCount(s.flow.State(), s.atm)
	}
	return s.hand.DrawFilteredByState(n, 0, s.flow.State()), nil
}

// AddExternalCard injects a one-off card into Draw or Hand, before or during
// the conversation.
func (s *Session) AddExternalCard(c card.Card, toHand bool) (*card.Instance, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return nil, ErrConversationEnded
	}
	return s.hand.AddExternalCard(c, toHand), nil
}

// ExecuteSpeak plays the selected cards in order. The whole selection is
// checked first; a rejected selection changes nothing.
func (s *Session) ExecuteSpeak(uids ...uint64) (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, ErrNoCardsSelected
	}
	cost := 0
	seen := make(map[uint64]struct{}, len(uids))
	for _, uid := range uids {
		if _, dup := seen[uid]; dup {
			return nil, ErrDuplicateSelection
		}
		seen[uid] = struct{}{}
		in, ok := s.hand.InHand(uid)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrCardNotInHand, uid)
		}
		cost += in.Focus
	}
	free := s.atm.PeekNextSpeakFree()
	if !free && cost > s.focus {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientFocus, cost, s.focus)
	}

	s.turn++
	tr := &TurnResult{Turn: s.turn, Action: ActionSpeak, FreeSpeak: free}
	charge := !s.atm.IsNextSpeakFree()

	for _, uid := range uids {
		in, _ := s.hand.InHand(uid)
		if in == nil {
			// knocked out of hand by an earlier play this turn, not charged
			continue
		}
		if charge {
			s.focus -= in.Focus
			tr.FocusSpent += in.Focus
		}
		pr := PlayResult{Card: in, Roll: NoRoll}
		pr.Percent = s.resolver.CalculateSuccessPercentage(&in.Card, s.atm)
		if in.Type.IsGoal() || s.atm.ShouldAutoSucceed() {
			pr.Succeeded = true
		} else {
			pr.Roll = s.rng.IntN(100)
			pr.Succeeded = pr.Roll < pr.Percent
		}

		res, err := s.hand.resolvePlay(uid, pr.Succeeded)
		if err != nil {
			return nil, ErrInvalidState(err.Error())
		}
		pr.Effect = res.Effects[0]
		tr.Plays = append(tr.Plays, pr)
		tr.Drawn = append(tr.Drawn, res.Drawn...)
		s.applyEffect(tr, &pr.Effect)
		if s.ended {
			return s.finishTurn(tr), nil
		}
		if pr.Succeeded && in.Persistence == card.PersistenceGoal {
			s.end(OutcomeSuccess, "goal card played: "+in.String())
			s.outcome.GoalCardID = in.ID
			return s.finishTurn(tr), nil
		}
	}

	var sweep SpeakResult
	s.hand.sweepImpulses(&sweep)
	tr.Swept = sweep.Swept
	tr.Drawn = append(tr.Drawn, sweep.Drawn...)
	for i := range sweep.Effects {
		tr.Exhaust = append(tr.Exhaust, sweep.Effects[i])
		s.applyEffect(tr, &sweep.Effects[i])
		if s.ended {
			return s.finishTurn(tr), nil
		}
	}

	s.spendPatience(tr)
	return s.finishTurn(tr), nil
}

// ExecuteListen sweeps Opening cards, draws for the current state and
// refreshes focus.
func (s *Session) ExecuteListen() (*TurnResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkActive(); err != nil {
		return nil, err
	}
	s.turn++
	tr := &TurnResult{Turn: s.turn, Action: ActionListen}

	res := s.hand.OnListenAction(s.flow.State())
	tr.Swept = res.Swept
	tr.Drawn = res.Drawn
	s.focus = s.focusCapacity()
	for i := range res.Effects {
		tr.Exhaust = append(tr.Exhaust, res.Effects[i])
		s.applyEffect(tr, &res.Effects[i])
		if s.ended {
			return s.finishTurn(tr), nil
		}
	}

	s.spendPatience(tr)
	return s.finishTurn(tr), nil
}

// GrantFreeSpeak makes the next SPEAK cost no focus. Items and world events
// hand these out.
func (s *Session) GrantFreeSpeak() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atm.SetNextSpeakFree()
}

// GrantFreePatience makes the next action cost no patience.
func (s *Session) GrantFreePatience() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atm.SetNextActionFreePatience()
}

// Leave ends the conversation at the player's request.
func (s *Session) Leave() (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkActive(); err != nil {
		return nil, err
	}
	s.end(OutcomeAbandoned, "player left")
	return s.outcome.clone(), nil
}

func (s *Session) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Outcome is nil until the conversation ends.
func (s *Session) Outcome() *Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome.clone()
}

func (s *Session) checkActive() error {
	if !s.started {
		return ErrNotStarted
	}
	if s.ended {
		return ErrConversationEnded
	}
	return nil
}

func (s *Session) focusCapacity() int {
	return s.cfg.FocusCapacity + s.atm.FocusCapacityBonus()
}

// applyEffect feeds one effect's numeric deltas into the session.
func (s *Session) applyEffect(tr *TurnResult, eff *EffectResult) {
	for _, m := range eff.Markers {
		s.addMarker(m)
	}
	if eff.RapportChange != 0 {
		s.totalRapport += eff.RapportChange
		fr := s.flow.ApplyFlowChange(eff.RapportChange, s.atm.Current())
		tr.Flow = append(tr.Flow, fr)
		if fr.StateChanged {
			s.hand.SetState(fr.NewState)
		}
		if fr.ConversationEnds {
			s.end(OutcomeFailure, "the NPC shuts down")
			return
		}
	}
	if eff.FlowReset {
		s.flow.ResetToZero()
	}
	s.focus += eff.FocusAdded
	s.patience += eff.PatienceAdded

	if eff.EndsConversation {
		if eff.HasMarker(MarkerFinalFailure) {
			s.end(OutcomeFailure, "failed under a final atmosphere")
		} else {
			s.end(OutcomeFailure, "ended by "+eff.CardID)
		}
	}
}

func (s *Session) spendPatience(tr *TurnResult) {
	if s.atm.ShouldWaivePatienceCost() {
		return
	}
	s.patience--
	tr.PatienceSpent = 1
	if s.patience <= 0 {
		s.patience = 0
		s.end(OutcomePatienceExhausted, "patience exhausted")
	}
}

func (s *Session) addMarker(m Marker) {
	for _, got := range s.markers {
		if got == m {
			return
		}
	}
	s.markers = append(s.markers, m)
}

func (s *Session) end(kind OutcomeKind, reason string) {
	if s.ended {
		return
	}
	s.ended = true
	s.outcome = &Outcome{
		Kind:         kind,
		Reason:       reason,
		TotalRapport: s.totalRapport,
		Markers:      append([]Marker(nil), s.markers...),
		FinalState:   s.flow.State(),
		FinalFlow:    s.flow.Flow(),
		Turns:        s.turn,
	}
}

func (s *Session) finishTurn(tr *TurnResult) *TurnResult {
	tr.Ended = s.ended
	tr.Outcome = s.outcome.clone()
	return tr
}
