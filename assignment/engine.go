// Package assignment picks the counselor for a new session.
package assignment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/counsel-relay-api/models"
)

// Policy selects among eligible counselors
type Policy string

const (
	// PolicyLeastLoaded picks the counselor with the fewest active sessions
	// in the category, ties broken by ascending id
	PolicyLeastLoaded Policy = "least_loaded"
	// PolicyRandom picks uniformly among eligible counselors
	PolicyRandom Policy = "random"
)

// LoadCounter reports live active-session counts per counselor. It must read
// the authoritative session state on every call.
type LoadCounter interface {
	CountActiveByCounselor(ctx context.Context, category string) (map[string]int, error)
}

// Engine assigns counselors to categories
type Engine struct {
	directory Directory
	loads     LoadCounter
	policy    Policy

	mu  sync.Mutex
	rng *rand.Rand
}

// NewEngine returns an engine using policy; an empty policy means least loaded
func NewEngine(directory Directory, loads LoadCounter, policy Policy) (*Engine, error) {
	switch policy {
	case "":
		policy = PolicyLeastLoaded
	case PolicyLeastLoaded, PolicyRandom:
	default:
		return nil, fmt.Errorf("unknown assignment policy %q", policy)
	}
	return &Engine{
		directory: directory,
		loads:     loads,
		policy:    policy,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Policy returns the configured selection policy
func (e *Engine) Policy() Policy {
	return e.policy
}

// Assign returns the counselor for a new session in category, or
// models.ErrUnavailable when nobody is eligible. Two concurrent calls may
// pick the same counselor; the next call sees both sessions.
func (e *Engine) Assign(ctx context.Context, category string) (string, error) {
	eligible, err := e.directory.Eligible(ctx, category)
	if err != nil {
		return "", err
	}
	if len(eligible) == 0 {
		zap.S().Infow("no eligible counselor", "category", category)
		return "", models.ErrUnavailable
	}

	if e.policy == PolicyRandom {
		e.mu.Lock()
		pick := eligible[e.rng.Intn(len(eligible))]
		e.mu.Unlock()
		return pick.ID, nil
	}

	counts, err := e.loads.CountActiveByCounselor(ctx, category)
	if err != nil {
		return "", err
	}
	best := ""
	bestLoad := 0
	for _, c := range eligible {
		load := counts[c.ID]
		if best == "" || load < bestLoad || (load == bestLoad && c.ID < best) {
			best, bestLoad = c.ID, load
		}
	}
	zap.S().Debugw("assigned counselor", "category", category, "counselorId", best, "load", bestLoad)
	return best, nil
}
