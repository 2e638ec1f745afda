package card

import "math/rand/v2"

// Pile is an ordered stack of instances; the end of the slice is the top.
type Pile []*Instance

func (p *Pile) Init(cards []*Instance) {
	*p = make([]*Instance, len(cards))
	copy(*p, cards)
}

// Count 获取牌数
func (p Pile) Count() int {
	return len(p)
}

func (p Pile) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(p), func(i, j int) {
		p[i], p[j] = p[j], p[i]
	})
}

func (p *Pile) Add(cards ...*Instance) {
	*p = append(*p, cards...)
}

// PopCard removes the top card, or returns nil when empty.
func (p *Pile) PopCard() *Instance {
	n := p.Count()
	if n == 0 {
		return nil
	}
	c := (*p)[n-1]
	(*p)[n-1] = nil
	*p = (*p)[:n-1]
	return c
}

// PopCards removes up to size cards from the top; fewer are returned when the
// pile runs out.
func (p *Pile) PopCards(size int) []*Instance {
	if size <= 0 {
		return nil
	}
	out := make([]*Instance, 0, min(size, p.Count()))
	for len(out) < size {
		c := p.PopCard()
		if c == nil {
			break
		}
		out = append(out, c)
	}
	return out
}

func (p Pile) IndexOf(uid uint64) int {
	for i, c := range p {
		if c.UID == uid {
			return i
		}
	}
	return -1
}

func (p Pile) Get(uid uint64) *Instance {
	if i := p.IndexOf(uid); i >= 0 {
		return p[i]
	}
	return nil
}

func (p Pile) Contains(uid uint64) bool {
	return p.IndexOf(uid) >= 0
}

// Take removes the instance with uid, preserving the order of the rest.
func (p *Pile) Take(uid uint64) (*Instance, bool) {
	i := p.IndexOf(uid)
	if i < 0 {
		return nil, false
	}
	return p.takeAt(i), true
}

// TakeWhere removes every instance matching match and returns them in pile order.
func (p *Pile) TakeWhere(match func(*Instance) bool) []*Instance {
	var taken []*Instance
	kept := (*p)[:0]
	for _, c := range *p {
		if match(c) {
			taken = append(taken, c)
			continue
		}
		kept = append(kept, c)
	}
	for i := len(kept); i < len(*p); i++ {
		(*p)[i] = nil
	}
	*p = kept
	return taken
}

// TakeRandom removes n instances chosen uniformly without replacement from
// those matching eligible.
func (p *Pile) TakeRandom(rng *rand.Rand, n int, eligible func(*Instance) bool) []*Instance {
	if n <= 0 {
		return nil
	}
	var candidates []uint64
	for _, c := range *p {
		if eligible == nil || eligible(c) {
			candidates = append(candidates, c.UID)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]*Instance, 0, n)
	for _, uid := range candidates[:n] {
		if c, ok := p.Take(uid); ok {
			out = append(out, c)
		}
	}
	return out
}

func (p *Pile) takeAt(i int) *Instance {
	c := (*p)[i]
	copy((*p)[i:], (*p)[i+1:])
	(*p)[len(*p)-1] = nil
	*p = (*p)[:len(*p)-1]
	return c
}

// UIDs lists instance ids in pile order.
func (p Pile) UIDs() []uint64 {
	out := make([]uint64, 0, len(p))
	for _, c := range p {
		out = append(out, c.UID)
	}
	return out
}
