package view

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/tracelens/rootgraph/internal/models"
)

// Player drives the timeline scrubber cursor. The position is a
// percentage-of-range value in [0, 100), advanced by the playback speed
// once per frame and wrapped at 100. The frame loop owns a cancellation
// handle so pausing or shutdown never leaves a dangling callback chain.
type Player struct {
	mu        sync.Mutex
	clk       clock.Clock
	frameRate time.Duration
	speed     float64
	position  float64
	playing   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewPlayer constructs a Player. A nil clock uses the wall clock; a
// non-positive speed defaults to 1.
func NewPlayer(clk clock.Clock, speed float64) *Player {
	if clk == nil {
		clk = clock.New()
	}
	if speed <= 0 {
		speed = 1
	}
	return &Player{
		clk:       clk,
		frameRate: 16 * time.Millisecond,
		speed:     speed,
	}
}

// Play starts the frame loop. Playing an already-playing player is a
// no-op.
func (p *Player) Play(ctx context.Context) {
	p.mu.Lock()
	if p.playing {
		p.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.playing = true
	p.cancel = cancel
	p.done = make(chan struct{})
	done := p.done
	p.mu.Unlock()

	go p.loop(runCtx, done)
}

// Pause cancels the frame loop and waits for it to exit.
func (p *Player) Pause() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Playing reports whether the frame loop is active.
func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

// Advance moves the cursor by one frame's worth of playback speed,
// wrapping at 100.
func (p *Player) Advance() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position += p.speed
	for p.position >= 100 {
		p.position -= 100
	}
}

// Position returns the cursor in [0, 100).
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

// Seek scrubs the cursor to an explicit position, clamped to [0, 100).
func (p *Player) Seek(position float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if position < 0 {
		position = 0
	}
	for position >= 100 {
		position -= 100
	}
	p.position = position
}

// SetSpeed changes the per-frame step.
func (p *Player) SetSpeed(speed float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if speed > 0 {
		p.speed = speed
	}
}

// CurrentTime maps the cursor onto an absolute timestamp within the
// timeline range.
func (p *Player) CurrentTime(tr models.TimeRange) int64 {
	span := tr.End - tr.Start
	if span <= 0 {
		return tr.Start
	}
	return tr.Start + int64(p.Position()/100*float64(span))
}

func (p *Player) loop(ctx context.Context, done chan struct{}) {
	defer func() {
		p.mu.Lock()
		p.playing = false
		p.cancel = nil
		p.mu.Unlock()
		close(done)
	}()

	ticker := p.clk.Ticker(p.frameRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Advance()
		}
	}
}
