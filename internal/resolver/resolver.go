package resolver

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/llm"
)

var ErrNoLegalMoves = errors.New("no legal moves available")

const (
	DefaultTimeout     = 30 * time.Second
	defaultMaxTokens   = 20
	defaultTemperature = 0.3
)

// Completer sends one prompt to a model and returns its raw reply.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Kind tags how a move was chosen.
type Kind int

const (
	Applied Kind = iota
	Fallback
	NoLegalMoves
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Fallback:
		return "fallback"
	default:
		return "no_legal_moves"
	}
}

// Outcome is the result of one resolution. Move is zero for NoLegalMoves.
// Cause holds the absorbed transport or extraction error of a fallback.
type Outcome struct {
	Kind  Kind
	Move  chess.Move
	Reply string
	Stage Stage
	Cause error
}

// Request describes the decision asked of one model.
type Request struct {
	Model      string
	Position   string
	LegalMoves []chess.Move
	Side       chess.Color
}

// Resolver turns a model's reply into a legal move, substituting a random
// legal move when the reply is unusable.
type Resolver struct {
	completer Completer
	timeout   time.Duration
	logger    *zap.Logger

	randMu sync.Mutex
	rand   *rand.Rand
}

type Option func(*Resolver)

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(c Completer, opts ...Option) *Resolver {
	r := &Resolver{
		completer: c,
		timeout:   DefaultTimeout,
		logger:    zap.NewNop(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve asks req.Model for a move. Transport and parsing failures never
// escape: they end in a Fallback outcome.
func (r *Resolver) Resolve(ctx context.Context, req Request) Outcome {
	if len(req.LegalMoves) == 0 {
		return Outcome{Kind: NoLegalMoves, Cause: ErrNoLegalMoves}
	}

	reply, err := r.complete(ctx, req)
	if err != nil {
		r.logger.Warn("resolver_request_failed",
			zap.String("model", req.Model),
			zap.String("side", string(req.Side)),
			zap.Error(err),
		)
		return r.fallback(req, "", err)
	}

	m, err := Extract(reply, req.LegalMoves)
	if err != nil {
		return r.fallback(req, reply, err)
	}
	r.logger.Debug("resolver_move",
		zap.String("model", req.Model),
		zap.String("reply", reply),
		zap.String("move", m.Move.String()),
		zap.String("stage", string(m.Stage)),
	)
	return Outcome{Kind: Applied, Move: m.Move, Reply: reply, Stage: m.Stage}
}

func (r *Resolver) complete(ctx context.Context, req Request) (reply string, err error) {
	if r.completer == nil {
		return "", llm.ErrMissingAPIKey
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.completer.Complete(ctx, llm.Request{
		Model:       req.Model,
		System:      SystemInstruction,
		Prompt:      BuildPrompt(req.Position, req.Side, req.LegalMoves),
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
		Stop:        StopSequences,
	})
}

func (r *Resolver) fallback(req Request, reply string, cause error) Outcome {
	mv := req.LegalMoves[r.random().Intn(len(req.LegalMoves))]
	r.logger.Info("resolver_fallback",
		zap.String("model", req.Model),
		zap.String("reply", reply),
		zap.String("move", mv.String()),
		zap.Error(cause),
	)
	return Outcome{Kind: Fallback, Move: mv, Reply: reply, Cause: cause}
}

func (r *Resolver) random() *rand.Rand {
	r.randMu.Lock()
	seed := r.rand.Int63()
	r.randMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

func (r *Resolver) SetRandomSeed(seed int64) {
	r.randMu.Lock()
	r.rand = rand.New(rand.NewSource(seed))
	r.randMu.Unlock()
}
