package ciphering

import (
	"fmt"

	"github.com/cybroslabs/dlms-session-go/base"
	"github.com/puzpuzpuz/xsync/v3"
)

// ReplayGuard keeps the last accepted invocation counter per sender system title.
// It is safe for concurrent use and can be shared by sessions.
type ReplayGuard struct {
	last *xsync.MapOf[[base.SystemTitleLength]byte, uint32]
}

func NewReplayGuard() *ReplayGuard {
	return &ReplayGuard{
		last: xsync.NewMapOf[[base.SystemTitleLength]byte, uint32](),
	}
}

func replaykey(title []byte) (k [base.SystemTitleLength]byte) {
	copy(k[:], title)
	return
}

// Last returns the last accepted counter of the title.
func (g *ReplayGuard) Last(title []byte) (uint32, bool) {
	return g.last.Load(replaykey(title))
}

// Check fails with ErrReplay if ic is not above the last accepted counter, nothing is changed.
func (g *ReplayGuard) Check(title []byte, ic uint32) error {
	if last, ok := g.last.Load(replaykey(title)); ok && ic <= last {
		return base.NewSecurityError(fmt.Errorf("%w: counter %d, last seen %d for %X", ErrReplay, ic, last, title))
	}
	return nil
}

// Accept records ic as the last accepted counter, it fails the same way as Check when ic is too low.
func (g *ReplayGuard) Accept(title []byte, ic uint32) error {
	var last uint32
	replayed := false
	g.last.Compute(replaykey(title), func(old uint32, loaded bool) (uint32, bool) {
		if loaded && ic <= old {
			last = old
			replayed = true
			return old, false
		}
		return ic, false
	})
	if replayed {
		return base.NewSecurityError(fmt.Errorf("%w: counter %d, last seen %d for %X", ErrReplay, ic, last, title))
	}
	return nil
}

// Forget drops the state of the title, used when the peer's keys were changed.
func (g *ReplayGuard) Forget(title []byte) {
	g.last.Delete(replaykey(title))
}
