package models

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidMapPool = errors.New("invalid map pool")

// MapPool - упорядоченный список карт, по которому идет вето.
type MapPool []string

// Validate проверяет пул при чтении: минимум две карты, без пустых и без повторов.
func (p MapPool) Validate() error {
	if len(p) < 2 {
		return fmt.Errorf("%w: at least 2 maps required, got %d", ErrInvalidMapPool, len(p))
	}
	seen := make(map[string]struct{}, len(p))
	for i, m := range p {
		if strings.TrimSpace(m) == "" {
			return fmt.Errorf("%w: empty map id at position %d", ErrInvalidMapPool, i+1)
		}
		if _, dup := seen[m]; dup {
			return fmt.Errorf("%w: duplicate map %q", ErrInvalidMapPool, m)
		}
		seen[m] = struct{}{}
	}
	return nil
}

func (p MapPool) Contains(mapID string) bool {
	for _, m := range p {
		if m == mapID {
			return true
		}
	}
	return false
}
