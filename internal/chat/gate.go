package chat

import (
	"math/rand/v2"
	"strings"
	"time"
)

// RandSource produces uniform draws in [0, 1).
type RandSource interface {
	Float64() float64
}

// RandFunc adapts a function to RandSource.
type RandFunc func() float64

// Float64 implements RandSource.
func (f RandFunc) Float64() float64 { return f() }

// DefaultRandSource draws from the goroutine-safe top-level math/rand/v2 source.
var DefaultRandSource RandSource = RandFunc(rand.Float64)

// GateConfig holds the response gating parameters.
type GateConfig struct {
	IgnorePrefixes      []string
	Cooldown            time.Duration
	TriggerKeywords     []string
	ResponseProbability float64
}

// Gate decides whether the bot should answer a message.
type Gate struct {
	cfg      GateConfig
	keywords []string
	rnd      RandSource
}

// NewGate builds a gate. A nil source falls back to DefaultRandSource.
func NewGate(cfg GateConfig, rnd RandSource) *Gate {
	if rnd == nil {
		rnd = DefaultRandSource
	}
	keywords := make([]string, 0, len(cfg.TriggerKeywords))
	for _, kw := range cfg.TriggerKeywords {
		if kw = strings.ToLower(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return &Gate{cfg: cfg, keywords: keywords, rnd: rnd}
}

// ShouldRespond applies the gating rules in order. lastReply/seen describe the
// channel's cooldown record; seen=false means the channel has no record.
// The random draw is only taken when no deterministic trigger matched.
func (g *Gate) ShouldRespond(msg Message, selfID string, lastReply time.Time, seen bool) bool {
	if msg.AuthorID == selfID {
		return false
	}

	for _, prefix := range g.cfg.IgnorePrefixes {
		if prefix != "" && strings.HasPrefix(msg.Content, prefix) {
			return false
		}
	}

	if seen && msg.Timestamp.Sub(lastReply) < g.cfg.Cooldown {
		return false
	}

	if msg.MentionsBot {
		return true
	}

	content := strings.ToLower(msg.Content)
	if strings.Contains(content, "?") && g.containsKeyword(content) {
		return true
	}

	return g.rnd.Float64() < g.cfg.ResponseProbability
}

func (g *Gate) containsKeyword(content string) bool {
	for _, kw := range g.keywords {
		if strings.Contains(content, kw) {
			return true
		}
	}
	return false
}
