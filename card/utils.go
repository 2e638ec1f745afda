package card

import (
	"fmt"
	"strings"
)

type byteEnum interface {
	~byte
}

func nameOf[T byteEnum](dict map[T]string, v T) string {
	if name, ok := dict[v]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", byte(v))
}

func marshalName[T byteEnum](dict map[T]string, kind string, v T) ([]byte, error) {
	name, ok := dict[v]
	if !ok {
		return nil, fmt.Errorf("invalid %s %d", kind, byte(v))
	}
	return []byte(name), nil
}

func unmarshalName[T byteEnum](dict map[T]string, kind string, b []byte, dst *T) error {
	want := strings.ToLower(strings.TrimSpace(string(b)))
	for v, name := range dict {
		if name == want {
			*dst = v
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q", kind, string(b))
}
