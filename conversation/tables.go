package conversation

import (
	"parley-lite/atmosphere"
	"parley-lite/card"
	"parley-lite/emotion"
)

// ConnectionState 关系亲疏，决定 LISTEN 时的基础抽牌数
type ConnectionState byte

const (
	ConnectionDisconnected ConnectionState = 0
	ConnectionGuarded      ConnectionState = 1
	ConnectionNeutral      ConnectionState = 2
	ConnectionReceptive    ConnectionState = 3
	ConnectionTrusting     ConnectionState = 4
)

var ConnectionStateDictionary = map[ConnectionState]string{
	ConnectionDisconnected: "disconnected",
	ConnectionGuarded:      "guarded",
	ConnectionNeutral:      "neutral",
	ConnectionReceptive:    "receptive",
	ConnectionTrusting:     "trusting",
}

func (c ConnectionState) String() string {
	if name, ok := ConnectionStateDictionary[c]; ok {
		return name
	}
	return "unknown"
}

// ConnectionFor maps the NPC's emotional state onto the draw table's key.
func ConnectionFor(s emotion.State) ConnectionState {
	switch {
	case s <= emotion.Desperate:
		return ConnectionDisconnected
	case s == emotion.Tense:
		return ConnectionGuarded
	case s == emotion.Neutral:
		return ConnectionNeutral
	case s == emotion.Open:
		return ConnectionReceptive
	default:
		return ConnectionTrusting
	}
}

// Fallbacks for entries missing from a Ruleset.
const (
	DefaultDrawCount      = 4
	DefaultMagnitude      = 1
	DefaultSuccessPercent = 50
	DefaultDisruptOffset  = 1
)

// Ruleset 一组只读的规则表。会话构造时注入，运行期不会被修改。
type Ruleset struct {
	magnitude     map[card.Difficulty]int
	baseSuccess   map[card.Difficulty]int
	drawCount     map[ConnectionState]int
	atmospheres   []atmosphere.Type // indexed by magnitude, last entry saturates
	disruptOffset int
}

// RuleOption overrides one table of the default ruleset.
type RuleOption func(*Ruleset)

func WithMagnitudes(m map[card.Difficulty]int) RuleOption {
	return func(r *Ruleset) { r.magnitude = copyMap(m) }
}

func WithBaseSuccess(m map[card.Difficulty]int) RuleOption {
	return func(r *Ruleset) { r.baseSuccess = copyMap(m) }
}

func WithDrawCounts(m map[ConnectionState]int) RuleOption {
	return func(r *Ruleset) { r.drawCount = copyMap(m) }
}

// WithAtmosphereTable sets the magnitude → atmosphere mapping. Index 0 is
// magnitude 0; magnitudes past the end use the last entry.
func WithAtmosphereTable(table []atmosphere.Type) RuleOption {
	return func(r *Ruleset) { r.atmospheres = append([]atmosphere.Type(nil), table...) }
}

func WithDisruptOffset(offset int) RuleOption {
	return func(r *Ruleset) { r.disruptOffset = offset }
}

// DefaultRuleset returns a fresh copy of the standard tables.
func DefaultRuleset() *Ruleset {
	return &Ruleset{
		magnitude: map[card.Difficulty]int{
			card.DifficultyVeryEasy: 1,
			card.DifficultyEasy:     1,
			card.DifficultyMedium:   2,
			card.DifficultyHard:     3,
			card.DifficultyVeryHard: 4,
		},
		baseSuccess: map[card.Difficulty]int{
			card.DifficultyVeryEasy: 85,
			card.DifficultyEasy:     70,
			card.DifficultyMedium:   50,
			card.DifficultyHard:     30,
			card.DifficultyVeryHard: 15,
		},
		drawCount: map[ConnectionState]int{
			ConnectionDisconnected: 3,
			ConnectionGuarded:      4,
			ConnectionNeutral:      4,
			ConnectionReceptive:    5,
			ConnectionTrusting:     5,
		},
		atmospheres: []atmosphere.Type{
			atmosphere.Neutral,
			atmosphere.Prepared,
			atmosphere.Receptive,
			atmosphere.Focused,
			atmosphere.Synchronized,
		},
		disruptOffset: DefaultDisruptOffset,
	}
}

// NewRuleset starts from the defaults and applies opts.
func NewRuleset(opts ...RuleOption) *Ruleset {
	r := DefaultRuleset()
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Magnitude 难度 → 效果强度
func (r *Ruleset) Magnitude(d card.Difficulty) int {
	if v, ok := r.magnitude[d]; ok {
		return v
	}
	return DefaultMagnitude
}

// BaseSuccess 难度 → 基础成功率（百分比）
func (r *Ruleset) BaseSuccess(d card.Difficulty) int {
	if v, ok := r.baseSuccess[d]; ok {
		return v
	}
	return DefaultSuccessPercent
}

// BaseDrawCount 关系 → LISTEN 基础抽牌数
func (r *Ruleset) BaseDrawCount(c ConnectionState) int {
	if v, ok := r.drawCount[c]; ok {
		return v
	}
	return DefaultDrawCount
}

// DrawCount is the base draw for the NPC's state plus the atmosphere modifier,
// floored at zero.
func (r *Ruleset) DrawCount(s emotion.State, atm *atmosphere.Manager) int {
	n := r.BaseDrawCount(ConnectionFor(s))
	if atm != nil {
		n += atm.DrawCountModifier()
	}
	if n < 0 {
		return 0
	}
	return n
}

// AtmosphereForMagnitude 氛围牌成功时按强度选择新的氛围
func (r *Ruleset) AtmosphereForMagnitude(m int) atmosphere.Type {
	if len(r.atmospheres) == 0 {
		return atmosphere.Neutral
	}
	if m <= 0 {
		return r.atmospheres[0]
	}
	if m >= len(r.atmospheres) {
		return r.atmospheres[len(r.atmospheres)-1]
	}
	return r.atmospheres[m]
}

// DisruptThreshold is the minimum focus cost a hand card needs to be knocked
// out by a Disrupting failure of magnitude m.
func (r *Ruleset) DisruptThreshold(m int) int {
	return m + r.disruptOffset
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
