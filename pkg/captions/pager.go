package captions

import (
	"strings"
	"sync"
)

// MaxLines is the number of finalized lines kept on screen.
const MaxLines = 14

// View is what the dashboard draws.
type View struct {
	Lines   []string `json:"lines"`
	Partial string   `json:"partial,omitempty"`
	Hidden  bool     `json:"hidden"`
}

// Pager keeps the most recent caption lines. Oldest lines scroll off once
// there are more than the limit.
type Pager struct {
	mu      sync.Mutex
	max     int
	lines   []string
	partial string
	hidden  bool
}

// NewPager creates a pager holding up to max lines (MaxLines if max <= 0).
func NewPager(max int) *Pager {
	if max <= 0 {
		max = MaxLines
	}
	return &Pager{max: max}
}

// Add applies a recognition result. Final text becomes a line and clears
// the partial; partial text replaces the previous partial.
func (p *Pager) Add(t Text) {
	text := strings.TrimSpace(t.Text)

	p.mu.Lock()
	defer p.mu.Unlock()

	if !t.Final {
		p.partial = text
		return
	}
	p.partial = ""
	if text == "" {
		return
	}
	p.lines = append(p.lines, text)
	if over := len(p.lines) - p.max; over > 0 {
		p.lines = append(p.lines[:0:0], p.lines[over:]...)
	}
}

// Lines returns a copy of the finalized lines, oldest first.
func (p *Pager) Lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.lines...)
}

// Hide hides the captions until Show or ToggleHidden. Text keeps
// accumulating while hidden.
func (p *Pager) Hide() {
	p.mu.Lock()
	p.hidden = true
	p.mu.Unlock()
}

// Show makes the captions visible again.
func (p *Pager) Show() {
	p.mu.Lock()
	p.hidden = false
	p.mu.Unlock()
}

// ToggleHidden flips visibility and returns the new hidden state.
func (p *Pager) ToggleHidden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hidden = !p.hidden
	return p.hidden
}

func (p *Pager) Hidden() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hidden
}

// Clear drops all lines and the partial.
func (p *Pager) Clear() {
	p.mu.Lock()
	p.lines = nil
	p.partial = ""
	p.mu.Unlock()
}

// View returns a snapshot for display. Hidden views carry no text.
func (p *Pager) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.hidden {
		return View{Lines: []string{}, Hidden: true}
	}
	return View{
		Lines:   append([]string{}, p.lines...),
		Partial: p.partial,
	}
}
