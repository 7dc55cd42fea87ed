// Package idgen produces prefixed record identifiers such as "APT-<uuid>".
package idgen

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medisetu/platform/pkg/common/models"
)

type Generator interface {
	NewID(prefix string) string
}

// UUID is the default scheme: prefix, dash, random UUID.
type UUID struct{}

func (UUID) NewID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New())
}

// Monotonic keeps the prefix+milliseconds shape but never repeats a value
// within the process: a call landing in an already used millisecond takes
// the next free one.
type Monotonic struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewMonotonic() *Monotonic {
	return &Monotonic{now: time.Now}
}

func (m *Monotonic) NewID(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms := m.now().UnixMilli()
	if ms <= m.last {
		ms = m.last + 1
	}
	m.last = ms
	return prefix + strconv.FormatInt(ms, 10)
}

// Legacy reproduces the identifiers the browser client used to write:
// patients get "P" plus a random number in [1000, 9999], everything else
// gets prefix plus the current unix milliseconds. Both collide easily.
type Legacy struct {
	mu  sync.Mutex
	rnd *rand.Rand
	now func() time.Time
}

func NewLegacy(seed int64) *Legacy {
	return &Legacy{rnd: rand.New(rand.NewSource(seed)), now: time.Now}
}

func (l *Legacy) NewID(prefix string) string {
	if prefix == models.PrefixPatient {
		l.mu.Lock()
		n := l.rnd.Intn(9000) + 1000
		l.mu.Unlock()
		return prefix + strconv.Itoa(n)
	}
	return prefix + strconv.FormatInt(l.now().UnixMilli(), 10)
}

// FromScheme maps the ID_SCHEME setting to a generator.
func FromScheme(scheme string) (Generator, error) {
	switch strings.ToLower(strings.TrimSpace(scheme)) {
	case "", "uuid":
		return UUID{}, nil
	case "monotonic":
		return NewMonotonic(), nil
	case "legacy":
		return NewLegacy(time.Now().UnixNano()), nil
	default:
		return nil, fmt.Errorf("unknown id scheme %q", scheme)
	}
}
