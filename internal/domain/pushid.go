package domain

import (
	"crypto/rand"
	"sync"
	"time"
)

// URL-safe base64 alphabet whose byte order matches its character order, so
// generated ids sort lexicographically by creation time.
const pushChars = "-0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ_abcdefghijklmnopqrstuvwxyz"

// PushIDGenerator mints 20-character keys: 8 characters encode the millisecond
// timestamp, 12 characters are random. Ids generated in the same millisecond
// reuse the previous random block incremented by one, which keeps them unique
// and strictly increasing.
type PushIDGenerator struct {
	mu       sync.Mutex
	now      func() time.Time
	lastMs   int64
	lastRand [12]byte
}

func NewPushIDGenerator(now func() time.Time) *PushIDGenerator {
	if now == nil {
		now = time.Now
	}
	return &PushIDGenerator{now: now}
}

func (g *PushIDGenerator) NextID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now().UnixMilli()
	dup := ms == g.lastMs
	g.lastMs = ms

	id := make([]byte, 20)
	ts := ms
	for i := 7; i >= 0; i-- {
		id[i] = pushChars[ts%64]
		ts /= 64
	}

	if dup {
		for i := 11; i >= 0; i-- {
			if g.lastRand[i] == 63 {
				g.lastRand[i] = 0
				continue
			}
			g.lastRand[i]++
			break
		}
	} else {
		var b [12]byte
		_, _ = rand.Read(b[:])
		for i := range b {
			g.lastRand[i] = b[i] % 64
		}
	}
	for i, v := range g.lastRand {
		id[8+i] = pushChars[v]
	}
	return string(id)
}
