package agent

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/and161185/csm-transport/internal/csm"
	"github.com/google/uuid"
)

// Simulator drives the lifecycle listener with random bid calls.
type Simulator struct {
	listener  *csm.Listener
	rnd       *rand.Rand
	profileID int
}

func NewSimulator(listener *csm.Listener, profileID int, seed uint64) *Simulator {
	return &Simulator{
		listener:  listener,
		rnd:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		profileID: profileID,
	}
}

// SimulateCall runs one bid call through the listener and returns its request.
func (s *Simulator) SimulateCall() csm.CallRequest {
	req := csm.CallRequest{
		RequestGroupID: uuid.NewString(),
		ProfileID:      s.profileID,
	}
	for i := 0; i < 1+s.rnd.IntN(3); i++ {
		req.Slots = append(req.Slots, csm.Slot{ImpressionID: uuid.NewString(), ZoneID: s.rnd.IntN(1000)})
	}
	s.listener.OnCallStarted(req)

	// one call in ten fails, half of those on timeout
	if s.rnd.IntN(10) == 0 {
		s.listener.OnCallFailed(req, s.rnd.IntN(2) == 0)
		return req
	}

	var bids []string
	for _, slot := range req.Slots {
		if s.rnd.IntN(3) > 0 {
			bids = append(bids, slot.ImpressionID)
		}
	}
	s.listener.OnCallFinished(req, bids)

	for _, id := range bids {
		if s.rnd.IntN(4) == 0 {
			s.listener.OnBidCached(id)
		}
		s.listener.OnBidConsumed(id, s.rnd.IntN(5) == 0)
	}
	return req
}

// Run simulates a call every interval until ctx is done.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			s.SimulateCall()
		}
	}
}
