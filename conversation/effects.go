package conversation

import (
	"fmt"
	"log"

	"parley-lite/atmosphere"
	"parley-lite/card"
)

// Marker 效果附带的标记，供会话和外部结算使用
type Marker byte

const (
	MarkerNone            Marker = 0
	MarkerSynchronized    Marker = 1 // 同步氛围使效果翻倍
	MarkerAdvance         Marker = 2 // 推进叙事队列
	MarkerOverreach       Marker = 3 // 失败清空手牌
	MarkerDisrupted       Marker = 4 // 失败打掉高消耗手牌
	MarkerEndConversation Marker = 5 // 耗尽效果要求结束对话
	MarkerFinalFailure    Marker = 6 // Final 氛围下失败
	MarkerUnrecognized    Marker = 7 // 未知效果类别，按空效果处理
)

var MarkerDictionary = map[Marker]string{
	MarkerNone:            "none",
	MarkerSynchronized:    "synchronized",
	MarkerAdvance:         "advance",
	MarkerOverreach:       "overreach",
	MarkerDisrupted:       "disrupted",
	MarkerEndConversation: "end_conversation",
	MarkerFinalFailure:    "final_failure",
	MarkerUnrecognized:    "unrecognized",
}

func (m Marker) String() string {
	if name, ok := MarkerDictionary[m]; ok {
		return name
	}
	return fmt.Sprintf("marker(%d)", byte(m))
}

// EffectKind which table an EffectResult came from.
type EffectKind byte

const (
	EffectSuccess EffectKind = 1
	EffectFailure EffectKind = 2
	EffectExhaust EffectKind = 3
)

var EffectKindDictionary = map[EffectKind]string{
	EffectSuccess: "success",
	EffectFailure: "failure",
	EffectExhaust: "exhaust",
}

func (k EffectKind) String() string {
	if name, ok := EffectKindDictionary[k]; ok {
		return name
	}
	return "unknown"
}

// EffectResult is the concrete outcome of one categorical effect. It is always
// well formed, including for failures and unrecognized categories.
type EffectResult struct {
	Kind      EffectKind
	CardUID   uint64
	CardID    string
	Magnitude int

	RapportChange int
	CardsToDraw   int
	FocusAdded    int
	PatienceAdded int
	FlowReset     bool

	SetsAtmosphere bool
	Atmosphere     atmosphere.Type

	// Hand cards the effect knocks out to Discard.
	Discard []*card.Instance

	Markers          []Marker
	EndsConversation bool
	Description      string
}

func (r *EffectResult) HasMarker(m Marker) bool {
	for _, got := range r.Markers {
		if got == m {
			return true
		}
	}
	return false
}

func (r *EffectResult) mark(m Marker) {
	if !r.HasMarker(m) {
		r.Markers = append(r.Markers, m)
	}
}

// EffectContext is what a resolver reads besides the card itself.
type EffectContext struct {
	Atmosphere *atmosphere.Manager
	// Hand excludes the card being resolved.
	Hand card.Pile
}

type (
	successFn func(r *Resolver, c *card.Instance, m int, ctx EffectContext, res *EffectResult)
	failureFn func(r *Resolver, c *card.Instance, m int, ctx EffectContext, res *EffectResult)
	exhaustFn func(r *Resolver, c *card.Instance, m int, ctx EffectContext, res *EffectResult)
)

var successTable = [card.SuccessTypeCount]successFn{
	card.SuccessNone: func(*Resolver, *card.Instance, int, EffectContext, *EffectResult) {},
	card.SuccessRapport: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.RapportChange = m
		res.Description = fmt.Sprintf("rapport +%d", m)
	},
	card.SuccessThreading: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.CardsToDraw = m
		res.Description = fmt.Sprintf("draw %d", m)
	},
	card.SuccessFocusing: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.FocusAdded = m
		res.Description = fmt.Sprintf("focus +%d", m)
	},
	card.SuccessAtmospheric: func(r *Resolver, c *card.Instance, m int, _ EffectContext, res *EffectResult) {
		next := c.Atmosphere
		if next == atmosphere.Neutral {
			next = r.rules.AtmosphereForMagnitude(m)
		}
		res.SetsAtmosphere = true
		res.Atmosphere = next
		res.Description = "atmosphere " + next.String()
	},
	card.SuccessPromising: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.RapportChange = 2 * m
		res.Description = fmt.Sprintf("rapport +%d (promise)", 2*m)
	},
	card.SuccessAdvancing: func(_ *Resolver, _ *card.Instance, _ int, _ EffectContext, res *EffectResult) {
		res.mark(MarkerAdvance)
		res.Description = "advance"
	},
	card.SuccessPatience: func(_ *Resolver, c *card.Instance, _ int, _ EffectContext, res *EffectResult) {
		res.PatienceAdded = c.PatienceBonus
		res.Description = fmt.Sprintf("patience +%d", c.PatienceBonus)
	},
	card.SuccessSettling: func(_ *Resolver, _ *card.Instance, _ int, _ EffectContext, res *EffectResult) {
		res.FlowReset = true
		res.Description = "flow settles"
	},
}

var failureTable = [card.FailureTypeCount]failureFn{
	card.FailureNone: func(*Resolver, *card.Instance, int, EffectContext, *EffectResult) {},
	card.FailureOverreach: func(_ *Resolver, _ *card.Instance, _ int, ctx EffectContext, res *EffectResult) {
		res.Discard = append(res.Discard, ctx.Hand...)
		res.mark(MarkerOverreach)
		res.Description = "overreach: hand cleared"
	},
	card.FailureBackfire: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.RapportChange = -m
		res.Description = fmt.Sprintf("rapport -%d", m)
	},
	card.FailureDisrupting: func(r *Resolver, _ *card.Instance, m int, ctx EffectContext, res *EffectResult) {
		threshold := r.rules.DisruptThreshold(m)
		for _, in := range ctx.Hand {
			if in.Focus >= threshold {
				res.Discard = append(res.Discard, in)
			}
		}
		res.mark(MarkerDisrupted)
		res.Description = fmt.Sprintf("disrupted: %d cards with focus >= %d", len(res.Discard), threshold)
	},
}

var exhaustTable = [card.ExhaustTypeCount]exhaustFn{
	card.ExhaustNone: func(*Resolver, *card.Instance, int, EffectContext, *EffectResult) {},
	card.ExhaustThreading: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.CardsToDraw = m
		res.Description = fmt.Sprintf("draw %d", m)
	},
	card.ExhaustFocusing: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.FocusAdded = m
		res.Description = fmt.Sprintf("focus +%d", m)
	},
	card.ExhaustRegret: func(_ *Resolver, _ *card.Instance, m int, _ EffectContext, res *EffectResult) {
		res.RapportChange = -m
		res.Description = fmt.Sprintf("rapport -%d (regret)", m)
	},
	card.ExhaustEnding: func(_ *Resolver, _ *card.Instance, _ int, _ EffectContext, res *EffectResult) {
		res.mark(MarkerEndConversation)
		res.EndsConversation = true
		res.Description = "the conversation ends"
	},
}

// Resolver turns a card's declared effect category and difficulty into
// concrete deltas. It never fails: unknown categories resolve to a no-op.
type Resolver struct {
	rules *Ruleset
}

func NewResolver(rules *Ruleset) *Resolver {
	if rules == nil {
		rules = DefaultRuleset()
	}
	return &Resolver{rules: rules}
}

func (r *Resolver) Rules() *Ruleset { return r.rules }

// Magnitude 难度 → 强度
func (r *Resolver) Magnitude(d card.Difficulty) int {
	return r.rules.Magnitude(d)
}

// CalculateSuccessPercentage 目标牌必定成功，其余按难度基础值加上氛围加成，限制在 [0,100]
func (r *Resolver) CalculateSuccessPercentage(c *card.Card, atm *atmosphere.Manager) int {
	if c.Type.IsGoal() {
		return 100
	}
	pct := r.rules.BaseSuccess(c.Difficulty)
	if atm != nil {
		pct += atm.SuccessPercentageBonus()
	}
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ProcessSuccessEffect resolves c's success category. It reads the atmosphere
// but leaves consuming it to the caller.
func (r *Resolver) ProcessSuccessEffect(c *card.Instance, ctx EffectContext) EffectResult {
	res := r.newResult(EffectSuccess, c)
	res.Magnitude = r.successMagnitude(c, ctx.Atmosphere, &res)

	idx := int(c.Success)
	if idx >= len(successTable) || successTable[idx] == nil {
		r.unrecognized(&res, "success", c.Success.String(), c)
		return res
	}
	successTable[idx](r, c, res.Magnitude, ctx, &res)
	return res
}

// ProcessFailureEffect resolves c's failure category. The atmosphere is
// cleared on every failure; a failure under Final ends the conversation.
func (r *Resolver) ProcessFailureEffect(c *card.Instance, ctx EffectContext) EffectResult {
	res := r.newResult(EffectFailure, c)
	res.Magnitude = r.rules.Magnitude(c.Difficulty)

	wasFinal := false
	if ctx.Atmosphere != nil {
		wasFinal = ctx.Atmosphere.ShouldEndOnFailure()
		ctx.Atmosphere.ClearOnFailure()
	}

	idx := int(c.Failure)
	if idx >= len(failureTable) || failureTable[idx] == nil {
		r.unrecognized(&res, "failure", c.Failure.String(), c)
	} else {
		failureTable[idx](r, c, res.Magnitude, ctx, &res)
	}

	if wasFinal {
		res.mark(MarkerFinalFailure)
		res.EndsConversation = true
	}
	return res
}

// ProcessExhaustEffect resolves the effect of a card swept out of the hand
// without being played. Thought cards never exhaust.
func (r *Resolver) ProcessExhaustEffect(c *card.Instance, ctx EffectContext) EffectResult {
	res := r.newResult(EffectExhaust, c)
	if c.Persistence == card.PersistenceThought {
		return res
	}
	res.Magnitude = r.rules.Magnitude(c.Difficulty)

	idx := int(c.Exhaust)
	if idx >= len(exhaustTable) || exhaustTable[idx] == nil {
		r.unrecognized(&res, "exhaust", c.Exhaust.String(), c)
		return res
	}
	exhaustTable[idx](r, c, res.Magnitude, ctx, &res)
	return res
}

func (r *Resolver) successMagnitude(c *card.Instance, atm *atmosphere.Manager, res *EffectResult) int {
	m := r.rules.Magnitude(c.Difficulty)
	if atm == nil {
		return m
	}
	switch atm.Current() {
	case atmosphere.Focused:
		m++
	case atmosphere.Exposed:
		m *= 2
	case atmosphere.Synchronized:
		m *= 2
		res.mark(MarkerSynchronized)
	}
	return m
}

func (r *Resolver) newResult(kind EffectKind, c *card.Instance) EffectResult {
	return EffectResult{Kind: kind, CardUID: c.UID, CardID: c.ID}
}

func (r *Resolver) unrecognized(res *EffectResult, table, value string, c *card.Instance) {
	log.Printf("[Effects] unrecognized %s effect %s on card %s, ignored", table, value, c)
	res.mark(MarkerUnrecognized)
	res.Description = "no effect"
}
