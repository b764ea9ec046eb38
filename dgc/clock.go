// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dgc runs the periodic distributed-garbage-collection
// exchange between two sessions: each side reports the identifiers it
// still imports, and an identifier this side exported that drops out
// of the peer's report is offered to registry.DropExport, which prunes
// it only if the peer's acknowledged version is still current -- see
// Clock.apply.
package dgc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/luxfi/dirmi/identity"
	"github.com/luxfi/dirmi/registry"
	"github.com/luxfi/dirmi/wire"
)

// PingMethodID is the reserved method identifier a session's accept
// loop recognizes as a DGC exchange rather than an ordinary
// invocation. identity.New never mints it, since it rejects zero.
const PingMethodID identity.ID = 0

// DefaultInterval is how often Clock initiates an exchange when no
// other interval is configured.
const DefaultInterval = 2 * time.Minute

// Connector is the piece of the broker Clock needs to initiate an
// exchange; dispatch.Connector satisfies it directly.
type Connector interface {
	Connect(ctx context.Context) (*wire.Channel, error)
}

// Recycler is the piece of the broker Clock needs to release a
// channel after an exchange; dispatch.Recycler satisfies it directly.
type Recycler interface {
	Recycle(ch *wire.Channel, err error)
}

// Clock owns one session's side of the DGC exchange: a periodic
// goroutine that initiates a round, and a handler for rounds the peer
// initiates.
type Clock struct {
	Registry  *registry.Registry
	Connector Connector
	Recycler  Recycler
	Interval  time.Duration
	Logger    *zap.Logger

	mu sync.Mutex
	// lastReported is the previous round's live-import report, kept by
	// version so a drop notice for an identifier that disappears from
	// this round can cite the version the peer last acknowledged.
	lastReported map[identity.ID]uint32
}

func (c *Clock) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func (c *Clock) interval() time.Duration {
	if c.Interval > 0 {
		return c.Interval
	}
	return DefaultInterval
}

// Run initiates an exchange every interval until ctx is done.
func (c *Clock) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.initiate(ctx); err != nil {
				c.logger().Warn("dirmi: dgc exchange failed", zap.Error(err))
			}
		}
	}
}

// initiate opens a channel, sends this side's live-imports report,
// reads the peer's reply report, and applies it to the local exported
// set.
func (c *Clock) initiate(ctx context.Context) error {
	ch, err := c.Connector.Connect(ctx)
	if err != nil {
		return err
	}

	out := ch.Writer()
	if err := out.WriteMethodID(PingMethodID); err != nil {
		c.Recycler.Recycle(ch, err)
		return err
	}
	if err := writeReport(out, c.Registry.LiveImports()); err != nil {
		c.Recycler.Recycle(ch, err)
		return err
	}
	if err := ch.Flush(); err != nil {
		c.Recycler.Recycle(ch, err)
		return err
	}

	peer, err := readReport(ch.Reader())
	if err != nil {
		c.Recycler.Recycle(ch, err)
		return err
	}
	c.Recycler.Recycle(ch, nil)

	c.apply(peer)
	return nil
}

// HandlePing services a round the peer initiated: ch has already had
// PingMethodID consumed by the caller's dispatch loop. It reads the
// peer's report, applies it, and replies with this side's own report.
func (c *Clock) HandlePing(ch *wire.Channel) {
	peer, err := readReport(ch.Reader())
	if err != nil {
		c.Recycler.Recycle(ch, err)
		return
	}
	c.apply(peer)

	out := ch.Writer()
	if err := writeReport(out, c.Registry.LiveImports()); err != nil {
		c.Recycler.Recycle(ch, err)
		return
	}
	if err := ch.Flush(); err != nil {
		c.Recycler.Recycle(ch, err)
		return
	}
	c.Recycler.Recycle(ch, nil)
}

// apply folds one inbound live-set report from the peer into this
// side's bookkeeping: every reported identifier has its acknowledged
// version refreshed, and any identifier this side exported and
// reported as live last round but is missing from this one is offered
// to registry.DropExport with the version the peer last acknowledged
// for it. DropExport only removes the export if that version is still
// current -- if the object was re-exported (bumping localVersion)
// between the two rounds, the stale acknowledgment no longer proves
// the peer has released the new incarnation, and the export survives.
func (c *Clock) apply(peer []registry.Live) {
	current := make(map[identity.ID]uint32, len(peer))
	for _, l := range peer {
		current[l.ID] = l.Version
		c.Registry.Refresh(l.ID, l.Version)
	}

	c.mu.Lock()
	previous := c.lastReported
	c.lastReported = current
	c.mu.Unlock()

	for id, version := range previous {
		if _, stillLive := current[id]; !stillLive {
			c.Registry.DropExport(id, version)
		}
	}
}

func writeReport(out *wire.Output, live []registry.Live) error {
	if err := out.WriteVarUint(uint32(len(live))); err != nil {
		return err
	}
	for _, l := range live {
		if err := out.WriteMethodID(l.ID); err != nil {
			return err
		}
		if err := out.WriteVarUint(l.Version); err != nil {
			return err
		}
	}
	return nil
}

func readReport(in *wire.Input) ([]registry.Live, error) {
	n, err := in.ReadVarUint()
	if err != nil {
		return nil, err
	}
	live := make([]registry.Live, n)
	for i := range live {
		id, err := in.ReadMethodID()
		if err != nil {
			return nil, err
		}
		ver, err := in.ReadVarUint()
		if err != nil {
			return nil, err
		}
		live[i] = registry.Live{ID: id, Version: ver}
	}
	return live, nil
}
