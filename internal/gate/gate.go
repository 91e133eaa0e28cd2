package gate

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUnknownTarget     = errors.New("unknown gate target")
	ErrNoPendingRequest  = errors.New("no pending access request")
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrTooManyAttempts   = errors.New("too many attempts")
)

const (
	MessageIncorrect       = "Incorrect password."
	MessageTooManyAttempts = "Too many attempts. Try again later."
)

type Target string

const (
	TargetReport  Target = "report"
	TargetFinance Target = "finance"
)

func ParseTarget(raw string) (Target, error) {
	switch Target(raw) {
	case TargetReport, TargetFinance:
		return Target(raw), nil
	default:
		return "", ErrUnknownTarget
	}
}

type Verifier interface {
	Verify(input string) bool
}

type BcryptVerifier struct {
	hash []byte
}

// NewBcryptVerifier accepts either a bcrypt hash or a plaintext secret,
// which is hashed once here and then discarded.
func NewBcryptVerifier(secret string) (*BcryptVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("gate secret is empty")
	}
	if IsBcryptHash(secret) {
		return &BcryptVerifier{hash: []byte(secret)}, nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return &BcryptVerifier{hash: hash}, nil
}

func (v *BcryptVerifier) Verify(input string) bool {
	if input == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword(v.hash, []byte(input)) == nil
}

func IsBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

// Gate guards the report and finance views of a single terminal.
type Gate struct {
	key      string
	verifier Verifier
	limiter  *AttemptLimiter
	target   Target
	errMsg   string
}

func New(key string, verifier Verifier, limiter *AttemptLimiter) *Gate {
	return &Gate{key: key, verifier: verifier, limiter: limiter}
}

// Request records which view the next correct password unlocks.
func (g *Gate) Request(target Target) error {
	if _, err := ParseTarget(string(target)); err != nil {
		return err
	}
	g.target = target
	g.errMsg = ""
	return nil
}

// Submit consumes the pending target on success. On failure the target is
// kept and an inline message is set.
func (g *Gate) Submit(input string) (Target, error) {
	return g.SubmitFrom("", input)
}

// SubmitFrom is Submit with failed attempts counted against client instead
// of the gate's own key, so a caller that keeps starting new gates from the
// same address shares one budget.
func (g *Gate) SubmitFrom(client string, input string) (Target, error) {
	if g.target == "" {
		return "", ErrNoPendingRequest
	}
	key := g.key
	if client != "" {
		key = client
	}
	if g.limiter.Blocked(key) {
		g.errMsg = MessageTooManyAttempts
		return "", ErrTooManyAttempts
	}
	if g.verifier == nil || !g.verifier.Verify(input) {
		g.limiter.RecordFailure(key)
		g.errMsg = MessageIncorrect
		return "", ErrIncorrectPassword
	}

	target := g.target
	g.target = ""
	g.errMsg = ""
	g.limiter.Reset(key)
	return target, nil
}

func (g *Gate) Cancel() {
	g.target = ""
	g.errMsg = ""
}

func (g *Gate) Pending() (Target, bool) {
	return g.target, g.target != ""
}

func (g *Gate) Error() string {
	return g.errMsg
}
