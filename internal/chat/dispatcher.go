package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Yunkai-Xiao/MisakiCat/internal/inference"
)

// Generator is the part of inference.Client the dispatcher needs.
type Generator interface {
	Generate(ctx context.Context, req inference.Request) (string, error)
}

// Outcome summarises what Handle did with a message.
type Outcome int

const (
	// OutcomeSkipped means the gate rejected the message.
	OutcomeSkipped Outcome = iota
	// OutcomeReplied means a reply was delivered and state updated.
	OutcomeReplied
	// OutcomeEmpty means the model produced nothing usable.
	OutcomeEmpty
	// OutcomeFailed means generation or delivery failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeReplied:
		return "replied"
	case OutcomeEmpty:
		return "empty"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Context entry labels.
const (
	LabelUser    = "User: "
	LabelPrompt  = "System Prompt: "
	LabelRaw     = "Raw Response: "
	LabelCleaned = "Cleaned Response: "
)

// DispatchConfig holds deployment constants for the dispatch loop.
type DispatchConfig struct {
	Model             string
	Options           inference.Options
	MaxReplyLength    int
	MaxConcurrent     int64
	GenerationTimeout time.Duration // zero means no timeout
	TypingInterval    time.Duration
	ErrorMessage      string
	EmptyMessage      string
}

// Dispatcher runs the per-message response loop.
type Dispatcher struct {
	log   *slog.Logger
	cfg   DispatchConfig
	gate  *Gate
	state *State
	gen   Generator
	sem   *semaphore.Weighted
}

// NewDispatcher wires the loop. state is owned by the caller and may be shared
// with maintenance tasks.
func NewDispatcher(logger *slog.Logger, cfg DispatchConfig, gate *Gate, state *State, gen Generator) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}
	return &Dispatcher{
		log:   logger.With("component", "dispatcher"),
		cfg:   cfg,
		gate:  gate,
		state: state,
		gen:   gen,
		sem:   semaphore.NewWeighted(cfg.MaxConcurrent),
	}
}

// Handle processes one incoming message. Errors never escape: failures are
// logged and turned into a single notice in the message's channel.
func (d *Dispatcher) Handle(ctx context.Context, r Responder, msg Message) (outcome Outcome) {
	log := d.log.With("request_id", uuid.NewString(), "channel_id", msg.ChannelID, "user_id", msg.AuthorID, "message_id", msg.ID)

	defer func() {
		if p := recover(); p != nil {
			log.ErrorContext(ctx, "Dispatch panicked", "panic", p)
			d.notify(ctx, log, r, msg.ChannelID, d.cfg.ErrorMessage)
			outcome = OutcomeFailed
		}
	}()

	last, seen := d.state.Cooldowns.Last(msg.ChannelID)
	if !d.gate.ShouldRespond(msg, r.SelfID(), last, seen) {
		log.DebugContext(ctx, "Gate rejected message")
		return OutcomeSkipped
	}

	started := time.Now()
	log.InfoContext(ctx, "Handling message", "mentioned", msg.MentionsBot)

	working := append(d.state.History.Get(msg.AuthorID), LabelUser+msg.Content)
	prompt := BuildPrompt(working, msg.Content)

	raw, err := d.generate(ctx, r, msg.ChannelID, prompt)
	if err != nil {
		log.ErrorContext(ctx, "Generation failed", "error", err, "duration", time.Since(started))
		d.notify(ctx, log, r, msg.ChannelID, d.cfg.ErrorMessage)
		return OutcomeFailed
	}

	cleaned := CleanResponse(raw)
	if cleaned == "" {
		log.WarnContext(ctx, "Model output had no usable response", "raw_chars", len(raw))
		d.notify(ctx, log, r, msg.ChannelID, d.cfg.EmptyMessage)
		return OutcomeEmpty
	}

	if err := r.Reply(ctx, msg, Truncate(cleaned, d.cfg.MaxReplyLength)); err != nil {
		log.ErrorContext(ctx, "Failed to deliver reply", "error", err)
		d.notify(ctx, log, r, msg.ChannelID, d.cfg.ErrorMessage)
		return OutcomeFailed
	}

	d.state.Cooldowns.Mark(msg.ChannelID, msg.Timestamp)
	d.state.History.Append(msg.AuthorID,
		LabelPrompt+prompt,
		LabelRaw+raw,
		LabelCleaned+cleaned,
	)

	log.InfoContext(ctx, "Sent reply", "chars", utf8.RuneCountInString(cleaned), "duration", time.Since(started))
	return OutcomeReplied
}

func (d *Dispatcher) generate(ctx context.Context, r Responder, channelID, prompt string) (string, error) {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("waiting for generation slot: %w", err)
	}
	defer d.sem.Release(1)

	genCtx := ctx
	if d.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		genCtx, cancel = context.WithTimeout(ctx, d.cfg.GenerationTimeout)
		defer cancel()
	}

	stopTyping := d.keepTyping(genCtx, r, channelID)
	defer stopTyping()

	raw, err := d.gen.Generate(genCtx, inference.Request{
		Model:   d.cfg.Model,
		Prompt:  prompt,
		Options: d.cfg.Options,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("generation timed out after %s: %w", d.cfg.GenerationTimeout, err)
		}
		return "", err
	}
	return raw, nil
}

// keepTyping refreshes the typing indicator until the returned stop func is
// called. stop waits for the refresher goroutine to exit.
func (d *Dispatcher) keepTyping(ctx context.Context, r Responder, channelID string) (stop func()) {
	if d.cfg.TypingInterval <= 0 {
		if err := r.Typing(ctx, channelID); err != nil {
			d.log.DebugContext(ctx, "Typing indicator failed", "error", err, "channel_id", channelID)
		}
		return func() {}
	}

	typingCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(d.cfg.TypingInterval)
		defer ticker.Stop()

		for {
			if err := r.Typing(typingCtx, channelID); err != nil {
				if typingCtx.Err() != nil {
					return
				}
				d.log.DebugContext(typingCtx, "Typing indicator failed", "error", err, "channel_id", channelID)
			}
			select {
			case <-typingCtx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

func (d *Dispatcher) notify(ctx context.Context, log *slog.Logger, r Responder, channelID, text string) {
	if text == "" {
		return
	}
	if err := r.Notify(ctx, channelID, text); err != nil {
		log.ErrorContext(ctx, "Failed to send notice", "error", err)
	}
}

// Truncate cuts s to at most limit runes. A non-positive limit disables it.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
