// Package summarizer compresses article text into a bounded summary using a
// lazily loaded model with a fallback chain.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"newsbrief/internal/model"
)

const (
	// MaxInputWords is the longest input passed to a model unchanged.
	MaxInputWords = 1024
	Ellipsis      = "..."

	DefaultMaxLength = 150
	DefaultMinLength = 50
)

var ErrModelUnavailable = errors.New("no summarization model could be loaded")

// Device is where a model runs.
type Device string

const (
	DeviceNone        Device = "none"
	DeviceAccelerated Device = "accelerated"
	DeviceCPU         Device = "cpu"
)

// State of an Engine's model.
type State string

const (
	StateUnloaded State = "unloaded"
	StateReady    State = "ready"
	StateDisabled State = "disabled"
)

// Request is one summarization call as seen by a model.
type Request struct {
	Text      string
	MaxLength int
	MinLength int
	Language  string
}

// Model produces a summary. Implementations must decode deterministically.
type Model interface {
	Name() string
	Device() Device
	Summarize(ctx context.Context, req Request) (string, error)
}

// Loader builds a Model. Loading may fail; the Engine then tries the next one.
type Loader interface {
	Name() string
	Load(ctx context.Context) (Model, error)
}

// Options configure an Engine.
type Options struct {
	TargetLanguage string
	MaxLength      int
	MinLength      int
}

// Engine owns one model. It is meant to be held by a single worker slot and
// reused across tasks; it is safe for concurrent use regardless.
type Engine struct {
	loaders []Loader
	opts    Options
	msgs    Messages
	logger  *zap.Logger

	mu    sync.Mutex
	model Model
	state State
}

func NewEngine(loaders []Loader, opts Options, logger *zap.Logger) *Engine {
	if opts.TargetLanguage == "" {
		opts.TargetLanguage = "uk"
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultMaxLength
	}
	if opts.MinLength <= 0 {
		opts.MinLength = DefaultMinLength
	}
	return &Engine{
		loaders: loaders,
		opts:    opts,
		msgs:    MessagesFor(opts.TargetLanguage),
		logger:  logger,
		state:   StateUnloaded,
	}
}

// State reports whether a model is loaded and where it runs.
func (e *Engine) State() (State, Device) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return e.state, DeviceNone
	}
	return e.state, e.model.Device()
}

// TargetLanguage is the language summaries are meant for.
func (e *Engine) TargetLanguage() string {
	return e.opts.TargetLanguage
}

// acquire loads the model on first use. Once every loader has failed the
// engine stays disabled.
func (e *Engine) acquire(ctx context.Context) (Model, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StateReady:
		return e.model, nil
	case StateDisabled:
		return nil, ErrModelUnavailable
	}

	for _, l := range e.loaders {
		m, err := l.Load(ctx)
		if err != nil {
			e.logger.Warn("Summarization model failed to load",
				zap.String("loader", l.Name()), zap.Error(err))
			continue
		}
		e.model = m
		e.state = StateReady
		e.logger.Info("Summarization model loaded",
			zap.String("model", m.Name()), zap.String("device", string(m.Device())))
		return m, nil
	}

	e.state = StateDisabled
	e.logger.Error("Summarization disabled: no model could be loaded")
	return nil, ErrModelUnavailable
}

// Summarize compresses text. lang annotates the result when it is neither the
// target language nor unknown. Zero lengths use the engine defaults.
func (e *Engine) Summarize(ctx context.Context, text string, maxLen, minLen int, lang string) Outcome {
	m, err := e.acquire(ctx)
	if err != nil {
		return Outcome{Summary: e.msgs.Unavailable, Status: StatusError, ModelUsed: string(DeviceNone)}
	}

	if maxLen <= 0 {
		maxLen = e.opts.MaxLength
	}
	if minLen <= 0 {
		minLen = e.opts.MinLength
	}
	if minLen > maxLen {
		minLen = maxLen
	}

	input := PrepareInput(text)
	inputWords := model.CountWords(input)
	if inputWords == 0 {
		return Outcome{Summary: e.msgs.EmptyInput, Status: StatusError, ModelUsed: m.Name()}
	}

	summary, err := e.infer(ctx, m, Request{Text: input, MaxLength: maxLen, MinLength: minLen, Language: lang})
	if err == nil && strings.TrimSpace(summary) == "" {
		err = errors.New("model returned an empty summary")
	}
	if err != nil {
		e.logger.Warn("Summarization failed", zap.String("model", m.Name()), zap.Error(err))
		return Outcome{
			Summary:    fmt.Sprintf(e.msgs.InferenceError, err),
			Status:     StatusError,
			ModelUsed:  m.Name(),
			InputWords: inputWords,
		}
	}

	summary = strings.TrimSpace(summary)
	out := Outcome{
		Summary:     summary,
		Status:      StatusSuccess,
		ModelUsed:   m.Name(),
		InputWords:  inputWords,
		OutputWords: model.CountWords(summary),
	}
	if e.foreign(lang) {
		out.Summary += fmt.Sprintf(e.msgs.LanguageNote, lang)
	}
	return out
}

// TranslateAndSummarize summarizes text and, for foreign sources, prefixes a
// note that the summary still needs translating. Nothing is translated.
func (e *Engine) TranslateAndSummarize(ctx context.Context, text, sourceLang string) Outcome {
	out := e.Summarize(ctx, text, 0, 0, sourceLang)
	if out.OK() && e.foreign(sourceLang) {
		out.Summary = fmt.Sprintf(e.msgs.TranslationNote, sourceLang) + out.Summary
		out.NeedsTranslation = true
	}
	return out
}

func (e *Engine) foreign(lang string) bool {
	return lang != "" && lang != model.LanguageUnknown && lang != e.opts.TargetLanguage
}

// infer shields callers from model panics.
func (e *Engine) infer(ctx context.Context, m Model, req Request) (summary string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return m.Summarize(ctx, req)
}

// PrepareInput keeps inputs of up to MaxInputWords words as they are. Longer
// inputs keep the first and last MaxInputWords/2 words around an ellipsis.
func PrepareInput(text string) string {
	words := strings.Fields(text)
	if len(words) <= MaxInputWords {
		return text
	}
	half := MaxInputWords / 2
	kept := make([]string, 0, MaxInputWords+1)
	kept = append(kept, words[:half]...)
	kept = append(kept, Ellipsis)
	kept = append(kept, words[len(words)-half:]...)
	return strings.Join(kept, " ")
}
