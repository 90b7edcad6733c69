package usecases

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"time"

	"github.com/0xcro3dile/ragchat/internal/domain/entities"
	"github.com/0xcro3dile/ragchat/internal/domain/ports"
)

// citationPattern matches an inline "(source : name)" marker emitted by the model.
var citationPattern = regexp.MustCompile(`(?i)\s?\(\s*source\s*:[^)]*\)`)

// EventType tags a StreamEvent.
type EventType string

const (
	EventToken   EventType = "token"
	EventSources EventType = "sources"
	EventError   EventType = "error"
	EventDone    EventType = "done"
)

// StreamEvent is one frame delivered to the client.
type StreamEvent struct {
	Type    EventType
	Content string
	Sources []entities.SourceRef
	Err     string
}

type assemblyState int

const (
	stateScanning assemblyState = iota
	stateNormal
	stateDone
)

// AssemblerConfig tunes the response assembler.
type AssemblerConfig struct {
	BufferThreshold    int           // max runes held while looking for a citation
	RelevanceThreshold float64       // top score needed to attach a citation
	Timeout            time.Duration // per-stream budget, zero disables
	ViewURL            func(fileName string) string
}

// PersistFunc stores the final assistant text.
type PersistFunc func(ctx context.Context, content string) error

// Assembler turns a model token stream into client events. It strips the
// first inline citation, appends one normalized citation with a sources
// event, and persists the final text.
type Assembler struct {
	cfg AssemblerConfig
}

// NewAssembler creates an Assembler.
func NewAssembler(cfg AssemblerConfig) *Assembler {
	if cfg.BufferThreshold <= 0 {
		cfg.BufferThreshold = 100
	}
	if cfg.RelevanceThreshold == 0 {
		cfg.RelevanceThreshold = 0.5
	}
	if cfg.ViewURL == nil {
		cfg.ViewURL = func(name string) string { return "/api/folder/view/" + name }
	}
	return &Assembler{cfg: cfg}
}

// Assemble consumes stream until exhaustion, failure or cancellation. The
// returned channel always ends with an EventDone and is then closed. cancel,
// if non-nil, is called on exit to release the upstream stream.
func (a *Assembler) Assemble(ctx context.Context, stream *ChatStream, cancel context.CancelFunc, persist PersistFunc) <-chan StreamEvent {
	out := make(chan StreamEvent, 64)
	run := &assembly{
		cfg:     a.cfg,
		ctx:     ctx,
		out:     out,
		sources: stream.Sources,
	}
	go func() {
		defer close(out)
		if cancel != nil {
			defer cancel()
		}
		run.consume(stream.Tokens, persist)
	}()
	return out
}

type assembly struct {
	cfg     AssemblerConfig
	ctx     context.Context
	out     chan<- StreamEvent
	sources []entities.QueryResult

	state   assemblyState
	buf     []rune
	emitted []rune
}

func (r *assembly) consume(tokens <-chan ports.StreamToken, persist PersistFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[ERROR] Stream assembly panic: %v", rec)
			r.fail(fmt.Errorf("internal error"))
		}
		r.state = stateDone
		r.send(StreamEvent{Type: EventDone})
	}()

	var timeout <-chan time.Time
	if r.cfg.Timeout > 0 {
		timer := time.NewTimer(r.cfg.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-r.ctx.Done():
			log.Printf("[WARN] Stream cancelled: %v", r.ctx.Err())
			return
		case <-timeout:
			r.fail(fmt.Errorf("%w: stream timed out after %v", entities.ErrUpstream, r.cfg.Timeout))
			return
		case tok, ok := <-tokens:
			if !ok {
				r.finish(persist)
				return
			}
			if tok.Error != nil {
				r.fail(tok.Error)
				return
			}
			if tok.Content != "" {
				r.push(tok.Content)
			}
			if tok.Done {
				r.finish(persist)
				return
			}
		}
	}
}

// push advances the state machine with one token.
func (r *assembly) push(token string) {
	if r.state == stateNormal {
		r.emit(token)
		return
	}

	r.buf = append(r.buf, []rune(token)...)
	text := string(r.buf)
	if loc := citationPattern.FindStringIndex(text); loc != nil {
		cleaned := []rune(text[:loc[0]] + text[loc[1]:])
		r.buf = nil
		for _, ch := range cleaned {
			r.emit(string(ch))
		}
		r.state = stateNormal
		return
	}

	for len(r.buf) > r.cfg.BufferThreshold {
		r.emit(string(r.buf[0]))
		r.buf = r.buf[1:]
	}
}

// finish flushes the buffer, attaches the citation and persists the answer.
func (r *assembly) finish(persist PersistFunc) {
	for _, ch := range r.buf {
		r.emit(string(ch))
	}
	r.buf = nil

	if len(r.sources) > 0 && r.sources[0].Score > r.cfg.RelevanceThreshold {
		top := r.sources[0]
		name := sourceFileName(top)
		r.emit(fmt.Sprintf(" (source : %s - %.1f%%)", name, top.Score*100))
		r.send(StreamEvent{
			Type: EventSources,
			Sources: []entities.SourceRef{{
				FileName: name,
				Score:    top.Score,
				Source:   r.cfg.ViewURL(name),
			}},
		})
	}

	if persist != nil {
		if err := persist(context.WithoutCancel(r.ctx), string(r.emitted)); err != nil {
			log.Printf("[ERROR] Persisting assistant message: %v", err)
		}
	}
}

func (r *assembly) fail(err error) {
	log.Printf("[ERROR] Stream failed: %v", err)
	r.send(StreamEvent{Type: EventError, Err: err.Error()})
}

func (r *assembly) emit(s string) {
	r.emitted = append(r.emitted, []rune(s)...)
	r.send(StreamEvent{Type: EventToken, Content: s})
}

// send delivers ev unless the consumer has gone away.
func (r *assembly) send(ev StreamEvent) {
	select {
	case r.out <- ev:
	case <-r.ctx.Done():
	}
}

// sourceFileName picks the citation name of a hit.
func sourceFileName(r entities.QueryResult) string {
	if name := r.Chunk.Metadata[entities.MetaFileName]; name != "" {
		return name
	}
	if r.SourceDoc != "" {
		return filepath.Base(r.SourceDoc)
	}
	return filepath.Base(r.Chunk.Source())
}
