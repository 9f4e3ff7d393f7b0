// Package presence keeps an in-memory roster of who is chatting with which
// bot.
//
// The chat hub records a join when a WebSocket client subscribes to a bot
// and an activity for every message it relays. A background reaper marks
// participants idle after a threshold and later evicts them, so the roster
// only reflects this process's live connections.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Activity kinds.
const (
	KindJoin    = "join"
	KindMessage = "message"
	KindLeave   = "leave"
)

// Entry is one participant's presence in a bot's chat.
type Entry struct {
	UserID       string    `json:"user_id"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	LastActivity string    `json:"last_activity"`
	IdleSecs     float64   `json:"idle_secs"`
	MessageCount int64     `json:"message_count"`
	Connections  int       `json:"connections"`
	Idle         bool      `json:"idle,omitempty"`
	IdleSince    time.Time `json:"idle_since,omitempty"`
}

// Activity is a single observation fed to the tracker.
type Activity struct {
	BotID  string
	UserID string
	Kind   string
}

// ReaperConfig configures the background idle reaper.
type ReaperConfig struct {
	// IdleThreshold is how long without activity before a participant is
	// marked idle. Default: 10 minutes.
	IdleThreshold time.Duration

	// EvictAfter is how long a participant stays idle before removal.
	// Default: 30 minutes.
	EvictAfter time.Duration

	// SweepInterval is how often the reaper scans. Default: 60 seconds.
	SweepInterval time.Duration

	// OnIdle is called outside the lock for each newly idle participant.
	OnIdle func(botID, userID string)
}

type participantKey struct {
	botID  string
	userID string
}

type participant struct {
	firstSeen    time.Time
	lastSeen     time.Time
	lastActivity string
	messages     int64
	conns        int
	idle         bool
	idleSince    time.Time
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu    sync.RWMutex
	parts map[participantKey]*participant
	now   func() time.Time

	reaperStop chan struct{}
	reaperDone chan struct{}
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{
		parts: make(map[participantKey]*participant),
		now:   time.Now,
	}
}

// Record applies an activity to the roster.
func (t *Tracker) Record(a Activity) {
	if a.BotID == "" || a.UserID == "" {
		return
	}
	now := t.now()
	key := participantKey{a.BotID, a.UserID}

	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.parts[key]
	if !ok {
		if a.Kind == KindLeave {
			return
		}
		p = &participant{firstSeen: now}
		t.parts[key] = p
	}
	if p.idle {
		slog.Debug("presence: participant active again", "bot", a.BotID, "user", a.UserID)
		p.idle = false
		p.idleSince = time.Time{}
	}

	p.lastSeen = now
	p.lastActivity = a.Kind
	switch a.Kind {
	case KindJoin:
		p.conns++
	case KindLeave:
		if p.conns > 0 {
			p.conns--
		}
	case KindMessage:
		p.messages++
	}
}

// Roster returns the participants of botID, most recently active first.
// Participants idle for longer than stale are skipped; 0 includes everyone.
func (t *Tracker) Roster(botID string, stale time.Duration) []Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()

	now := t.now()
	entries := make([]Entry, 0)
	for key, p := range t.parts {
		if key.botID != botID {
			continue
		}
		idle := now.Sub(p.lastSeen)
		if stale > 0 && idle > stale {
			continue
		}
		entries = append(entries, Entry{
			UserID:       key.userID,
			FirstSeen:    p.firstSeen,
			LastSeen:     p.lastSeen,
			LastActivity: p.lastActivity,
			IdleSecs:     idle.Seconds(),
			MessageCount: p.messages,
			Connections:  p.conns,
			Idle:         p.idle,
			IdleSince:    p.idleSince,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].LastSeen.Equal(entries[j].LastSeen) {
			return entries[i].UserID < entries[j].UserID
		}
		return entries[i].LastSeen.After(entries[j].LastSeen)
	})
	return entries
}

// StartReaper launches the idle reaper. Call Stop to shut it down.
func (t *Tracker) StartReaper(cfg *ReaperConfig) {
	if cfg == nil {
		cfg = &ReaperConfig{}
	}
	if cfg.IdleThreshold == 0 {
		cfg.IdleThreshold = 10 * time.Minute
	}
	if cfg.EvictAfter == 0 {
		cfg.EvictAfter = 30 * time.Minute
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 60 * time.Second
	}

	t.reaperStop = make(chan struct{})
	t.reaperDone = make(chan struct{})

	go t.reapLoop(cfg)
	slog.Info("presence: reaper started",
		"idle_threshold", cfg.IdleThreshold,
		"sweep_interval", cfg.SweepInterval)
}

// Stop shuts down the reaper goroutine.
func (t *Tracker) Stop() {
	if t.reaperStop != nil {
		close(t.reaperStop)
		<-t.reaperDone
		t.reaperStop = nil
		t.reaperDone = nil
	}
}

func (t *Tracker) reapLoop(cfg *ReaperConfig) {
	defer close(t.reaperDone)

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.reaperStop:
			return
		case <-ticker.C:
			t.sweep(cfg)
		}
	}
}

func (t *Tracker) sweep(cfg *ReaperConfig) {
	now := t.now()
	var newlyIdle []participantKey

	t.mu.Lock()
	for key, p := range t.parts {
		if p.idle {
			if now.Sub(p.idleSince) > cfg.EvictAfter {
				delete(t.parts, key)
			}
			continue
		}
		// Open connections keep a participant alive only until the threshold
		// passes with no traffic at all.
		if now.Sub(p.lastSeen) > cfg.IdleThreshold {
			p.idle = true
			p.idleSince = now
			newlyIdle = append(newlyIdle, key)
		}
	}
	t.mu.Unlock()

	for _, key := range newlyIdle {
		slog.Info("presence: participant idle", "bot", key.botID, "user", key.userID)
		if cfg.OnIdle != nil {
			cfg.OnIdle(key.botID, key.userID)
		}
	}
}
