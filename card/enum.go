package card

// Type 牌的类别。Letter / Promise / BurdenGoal 属于目标牌（请求牌），总是成功。
type Type byte

const (
	TypeConversation Type = 0
	TypeObservation  Type = 1
	TypeLetter       Type = 2
	TypePromise      Type = 3
	TypeBurdenGoal   Type = 4
)

var TypeDictionary = map[Type]string{
	TypeConversation: "conversation",
	TypeObservation:  "observation",
	TypeLetter:       "letter",
	TypePromise:      "promise",
	TypeBurdenGoal:   "burden_goal",
}

// Persistence 决定牌何时离开手牌
type Persistence byte

const (
	PersistenceThought Persistence = 0 // 一直留在手里
	PersistenceImpulse Persistence = 1 // SPEAK 之后离开
	PersistenceOpening Persistence = 2 // LISTEN 之后离开
	PersistenceGoal    Persistence = 3 // 目标牌，打出后移入 Exhaust
)

var PersistenceDictionary = map[Persistence]string{
	PersistenceThought: "thought",
	PersistenceImpulse: "impulse",
	PersistenceOpening: "opening",
	PersistenceGoal:    "goal",
}

// Difficulty 难度，决定效果强度和基础成功率
type Difficulty byte

const (
	DifficultyVeryEasy Difficulty = 0
	DifficultyEasy     Difficulty = 1
	DifficultyMedium   Difficulty = 2
	DifficultyHard     Difficulty = 3
	DifficultyVeryHard Difficulty = 4
)

var DifficultyDictionary = map[Difficulty]string{
	DifficultyVeryEasy: "very_easy",
	DifficultyEasy:     "easy",
	DifficultyMedium:   "medium",
	DifficultyHard:     "hard",
	DifficultyVeryHard: "very_hard",
}

// Difficulties in ascending order.
var Difficulties = []Difficulty{
	DifficultyVeryEasy, DifficultyEasy, DifficultyMedium, DifficultyHard, DifficultyVeryHard,
}

// SuccessType 成功效果类别
type SuccessType byte

const (
	SuccessNone        SuccessType = 0
	SuccessRapport     SuccessType = 1
	SuccessThreading   SuccessType = 2
	SuccessFocusing    SuccessType = 3
	SuccessAtmospheric SuccessType = 4
	SuccessPromising   SuccessType = 5
	SuccessAdvancing   SuccessType = 6
	SuccessPatience    SuccessType = 7
	SuccessSettling    SuccessType = 8

	SuccessTypeCount = 9
)

var SuccessTypeDictionary = map[SuccessType]string{
	SuccessNone:        "none",
	SuccessRapport:     "rapport",
	SuccessThreading:   "threading",
	SuccessFocusing:    "focusing",
	SuccessAtmospheric: "atmospheric",
	SuccessPromising:   "promising",
	SuccessAdvancing:   "advancing",
	SuccessPatience:    "patience",
	SuccessSettling:    "settling",
}

// FailureType 失败效果类别
type FailureType byte

const (
	FailureNone       FailureType = 0
	FailureOverreach  FailureType = 1
	FailureBackfire   FailureType = 2
	FailureDisrupting FailureType = 3

	FailureTypeCount = 4
)

var FailureTypeDictionary = map[FailureType]string{
	FailureNone:       "none",
	FailureOverreach:  "overreach",
	FailureBackfire:   "backfire",
	FailureDisrupting: "disrupting",
}

// ExhaustType 牌未打出而被清出手牌时触发的效果
type ExhaustType byte

const (
	ExhaustNone      ExhaustType = 0
	ExhaustThreading ExhaustType = 1
	ExhaustFocusing  ExhaustType = 2
	ExhaustRegret    ExhaustType = 3
	ExhaustEnding    ExhaustType = 4

	ExhaustTypeCount = 5
)

var ExhaustTypeDictionary = map[ExhaustType]string{
	ExhaustNone:      "none",
	ExhaustThreading: "threading",
	ExhaustFocusing:  "focusing",
	ExhaustRegret:    "regret",
	ExhaustEnding:    "ending",
}

func (t Type) String() string        { return nameOf(TypeDictionary, t) }
func (p Persistence) String() string { return nameOf(PersistenceDictionary, p) }
func (d Difficulty) String() string  { return nameOf(DifficultyDictionary, d) }
func (s SuccessType) String() string { return nameOf(SuccessTypeDictionary, s) }
func (f FailureType) String() string { return nameOf(FailureTypeDictionary, f) }
func (e ExhaustType) String() string { return nameOf(ExhaustTypeDictionary, e) }

// IsGoal reports whether cards of this type are requests that always succeed.
func (t Type) IsGoal() bool {
	return t == TypeLetter || t == TypePromise || t == TypeBurdenGoal
}

// IsFleeting reports whether the persistence leaves the hand on SPEAK or LISTEN.
func (p Persistence) IsFleeting() bool {
	return p == PersistenceImpulse || p == PersistenceOpening
}

func (t Type) MarshalText() ([]byte, error)        { return marshalName(TypeDictionary, "card type", t) }
func (p Persistence) MarshalText() ([]byte, error) { return marshalName(PersistenceDictionary, "persistence", p) }
func (d Difficulty) MarshalText() ([]byte, error)  { return marshalName(DifficultyDictionary, "difficulty", d) }
func (s SuccessType) MarshalText() ([]byte, error) { return marshalName(SuccessTypeDictionary, "success type", s) }
func (f FailureType) MarshalText() ([]byte, error) { return marshalName(FailureTypeDictionary, "failure type", f) }
func (e ExhaustType) MarshalText() ([]byte, error) { return marshalName(ExhaustTypeDictionary, "exhaust type", e) }

func (t *Type) UnmarshalText(b []byte) error        { return unmarshalName(TypeDictionary, "card type", b, t) }
func (p *Persistence) UnmarshalText(b []byte) error { return unmarshalName(PersistenceDictionary, "persistence", b, p) }
func (d *Difficulty) UnmarshalText(b []byte) error  { return unmarshalName(DifficultyDictionary, "difficulty", b, d) }
func (s *SuccessType) UnmarshalText(b []byte) error { return unmarshalName(SuccessTypeDictionary, "success type", b, s) }
func (f *FailureType) UnmarshalText(b []byte) error { return unmarshalName(FailureTypeDictionary, "failure type", b, f) }
func (e *ExhaustType) UnmarshalText(b []byte) error { return unmarshalName(ExhaustTypeDictionary, "exhaust type", b, e) }
