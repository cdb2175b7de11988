package pipeline

import (
	"context"
	"fmt"

	"github.com/jstnmthw/hlstatsnext-sub008/internal/model"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/repository"
	"github.com/jstnmthw/hlstatsnext-sub008/internal/scorer"
)

// Notifier delivers a rendered message for an event; the concrete
// implementation (internal/notify) renders the §6 templates. deltas
// carries the skill change already applied to each involved player
// (by PlayerID), so the notifier never has to recompute scoring to
// render "{points}". A failure here is logged by the Notify step and never
// rolls back persistence, so the interface returns an error only for
// the chain's own bookkeeping, not as a signal to abort the
// transaction.
type Notifier interface {
	Notify(ctx context.Context, evt model.Event, deltas map[model.PlayerID]int) error
}

// noopNotifier is the Chain's default when no Notifier is configured.
type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, model.Event, map[model.PlayerID]int) error { return nil }

// Publisher fans a persisted event out to downstream consumers (today
// internal/analytics, via internal/eventbus) without the chain knowing
// they exist. Publishing happens after the transaction commits, so a
// slow or stuck subscriber can never stall persistence.
type Publisher interface {
	Publish(evt model.Event)
}

// noopPublisher is the Chain's default when no Publisher is configured.
type noopPublisher struct{}

func (noopPublisher) Publish(model.Event) {}

// Dependencies are the collaborators every handler step needs. Repo is
// expected to already be the transactional view handed in by
// Chain.Run; steps never call repository.Transaction themselves.
type Dependencies struct {
	Game     string // this server's game code, used for player lookups
	Scorer   *scorer.Scorer
	Notifier Notifier
	repo     repository.Repository
}

// stepState carries bookkeeping between steps of a single Run call
// that doesn't belong on the shared Event envelope (e.g. skill deltas
// computed by ApplyScoring and consumed by Persist).
type stepState struct {
	deltas []scoreDelta
}

// Handler is one step in the chain. ctx carries cancellation; evt is
// mutated in place as identities resolve and deltas compute; state
// carries data forward to later steps within the same Run call.
type Handler func(ctx context.Context, deps Dependencies, evt *model.Event, state *stepState) error

// Chain runs an ordered list of Handlers inside one repository
// transaction per event (§4.6: resolve identities, enrich, score,
// persist, notify).
type Chain struct {
	repo      repository.Repository
	scorer    *scorer.Scorer
	notifier  Notifier
	publisher Publisher
	steps     []Handler
}

// NewChain builds the standard chain: resolve -> score -> persist ->
// notify. Callers needing a different ordering (e.g. tests isolating
// one step) can construct a Chain with custom steps directly.
func NewChain(repo repository.Repository, sc *scorer.Scorer, notifier Notifier) *Chain {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &Chain{
		repo:      repo,
		scorer:    sc,
		notifier:  notifier,
		publisher: noopPublisher{},
		steps:     []Handler{ResolveIdentities, ApplyScoring, Persist, Notify},
	}
}

// SetPublisher attaches the fan-out target for persisted events; until
// called, Run's publish step is a no-op.
func (c *Chain) SetPublisher(p Publisher) {
	if p == nil {
		p = noopPublisher{}
	}
	c.publisher = p
}

// Run executes the chain for one event inside a single transaction,
// then fans the (now identity- and delta-enriched) event out to the
// configured Publisher once the transaction has committed.
func (c *Chain) Run(ctx context.Context, evt model.Event) error {
	err := c.repo.Transaction(ctx, func(ctx context.Context, repo repository.Repository) error {
		server, ok, err := repo.GetServerByID(ctx, evt.ServerID)
		if err != nil {
			return fmt.Errorf("pipeline: loading server %d: %w", evt.ServerID, err)
		}
		if !ok {
			return fmt.Errorf("pipeline: unknown server %d", evt.ServerID)
		}

		deps := Dependencies{
			Game:     server.GameCode,
			Scorer:   c.scorer,
			Notifier: c.notifier,
		}

		deps.repo = repo
		state := &stepState{}
		for _, step := range c.steps {
			if err := step(ctx, deps, &evt, state); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	c.publisher.Publish(evt)
	return nil
}
