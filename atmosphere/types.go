package atmosphere

import "fmt"

// Type 氛围类型。同一时刻只有一个生效。
type Type byte

const (
	Neutral      Type = 0  // 无效果
	Prepared     Type = 1  // 专注上限 +1
	Informed     Type = 2  // 下一张牌自动成功（一次性）
	Synchronized Type = 3  // 下一个效果翻倍（一次性）
	Receptive    Type = 4  // 抽牌 +1
	Pressured    Type = 5  // 抽牌 -1
	Patient      Type = 6  // 不消耗耐心
	Volatile     Type = 7  // flow 变化幅度 +1
	Exposed      Type = 8  // flow 变化翻倍
	Final        Type = 9  // 任何失败都会结束对话
	Focused      Type = 10 // 成功率 +20%
)

var TypeDictionary = map[Type]string{
	Neutral:      "neutral",
	Prepared:     "prepared",
	Informed:     "informed",
	Synchronized: "synchronized",
	Receptive:    "receptive",
	Pressured:    "pressured",
	Patient:      "patient",
	Volatile:     "volatile",
	Exposed:      "exposed",
	Final:        "final",
	Focused:      "focused",
}

func (t Type) String() string {
	if name, ok := TypeDictionary[t]; ok {
		return name
	}
	return fmt.Sprintf("atmosphere(%d)", byte(t))
}

func (t Type) IsValid() bool {
	_, ok := TypeDictionary[t]
	return ok
}

// Parse accepts the lowercase names used in TypeDictionary.
func Parse(name string) (Type, error) {
	for t, n := range TypeDictionary {
		if n == name {
			return t, nil
		}
	}
	return Neutral, fmt.Errorf("unknown atmosphere %q", name)
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("unknown atmosphere %d", byte(t))
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ModifyFlow applies the atmosphere's flow modifier to delta.
// Zero always maps to zero.
func ModifyFlow(t Type, delta int) int {
	switch t {
	case Volatile:
		switch {
		case delta > 0:
			return delta + 1
		case delta < 0:
			return delta - 1
		}
		return 0
	case Exposed:
		return delta * 2
	default:
		return delta
	}
}
