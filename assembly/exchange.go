package assembly

import (
	"fmt"
	"time"
)

// haloMsg carries one partition's ghost contributions to the owner,
// tagged with the field so a dropped or reordered synchronization is
// caught at the receiver.
type haloMsg struct {
	field string
	data  []float64
}

// SynchronizationError is a dead or inconsistent partition exchange:
// a timeout, an unexpected field tag, or a buffer length mismatch.
// Fatal, never retried.
type SynchronizationError struct {
	Field     string
	Partition int
	Neighbor  int
	Reason    string
}

func (e SynchronizationError) Error() string {
	return fmt.Sprintf("synchronize %q on partition %d with neighbor %d: %s",
		e.Field, e.Partition, e.Neighbor, e.Reason)
}

// SynchronizeBegin publishes the partition's owned entries into the
// global vector and posts one ghost-contribution buffer per neighbor.
// Channel sends are buffered, so Begin returns without waiting on any
// receiver.
func (p *Partition) SynchronizeBegin(name string) {
	var (
		gl  = p.a.Field(name)
		loc = p.local[name]
	)
	for _, slot := range p.owned {
		gl[p.l2g[slot]] = loc[slot]
	}
	for _, q := range p.sendTo {
		var (
			idx = p.sendIdx[q]
			buf = make([]float64, len(idx))
		)
		for i, slot := range idx {
			buf[i] = loc[slot]
		}
		p.a.chans[p.ID][q] <- haloMsg{field: name, data: buf}
	}
}

// SynchronizeEnd receives exactly one buffer from every neighbor that
// ghosts dofs owned here, adds the contributions into the global
// vector, then re-applies every recorded boundary overwrite on owned
// dofs. Blocks until all expected data arrived; a timeout, wrong
// field tag or wrong buffer length is a SynchronizationError.
//
// All partitions must have finished accumulation and boundary
// recording for the step before any SynchronizeEnd runs; the solver
// separates the phases with a barrier.
func (p *Partition) SynchronizeEnd(name string) error {
	gl := p.a.Field(name)
	for _, q := range p.recvFrom {
		select {
		case msg := <-p.a.chans[q][p.ID]:
			if msg.field != name {
				return SynchronizationError{
					Field: name, Partition: p.ID, Neighbor: q,
					Reason: fmt.Sprintf("received field %q out of order", msg.field),
				}
			}
			gdofs := p.recvGdof[q]
			if len(msg.data) != len(gdofs) {
				return SynchronizationError{
					Field: name, Partition: p.ID, Neighbor: q,
					Reason: fmt.Sprintf("buffer length %d, expected %d", len(msg.data), len(gdofs)),
				}
			}
			for i, g := range gdofs {
				gl[g] += msg.data[i]
			}
		case <-time.After(p.a.SyncTimeout):
			return SynchronizationError{
				Field: name, Partition: p.ID, Neighbor: q,
				Reason: fmt.Sprintf("timed out after %v", p.a.SyncTimeout),
			}
		}
	}
	// boundary overwrites win over anything accumulated, wherever the
	// constraint was recorded
	for _, other := range p.a.Part {
		for g, v := range other.pending[name] {
			if p.a.ownerPart[g] == p.ID {
				gl[g] = v
			}
		}
	}
	return nil
}
