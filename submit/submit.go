// Package submit is the render-submission side of a pool: it binds ranges as draw sources, tells their pools they
// are referenced by device work, and queues the device reads.
//
package submit

import (
	"github.com/openziti/geoarena"
	"github.com/openziti/geoarena/device"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Queue accepts asynchronous device reads. sim.Device satisfies it.
//
type Queue interface {
	Draw(buf device.Buffer, offset, size int) error
}

type binding struct {
	r   *geoarena.Range
	buf device.Buffer
}

// Submitter accumulates bound sources for a single draw.
//
type Submitter struct {
	queue    Queue
	vertices []binding
	indices  *binding
	draws    int
}

func NewSubmitter(queue Queue) *Submitter {
	return &Submitter{queue: queue}
}

func (self *Submitter) BindVertexSource(r *geoarena.Range) error {
	b, err := self.bind(r, geoarena.VertexData)
	if err != nil {
		return err
	}
	self.vertices = append(self.vertices, b)
	return nil
}

func (self *Submitter) BindIndexSource(r *geoarena.Range) error {
	b, err := self.bind(r, geoarena.IndexData)
	if err != nil {
		return err
	}
	self.indices = &b
	return nil
}

func (self *Submitter) bind(r *geoarena.Range, kind geoarena.Kind) (binding, error) {
	if !r.Valid() {
		return binding{}, errors.Wrapf(geoarena.ErrStaleHandle, "bind %s source from pool [%s]", kind, r.Pool().ID())
	}
	if r.Pool().Kind() != kind {
		return binding{}, errors.Wrapf(geoarena.ErrInvalidArgument, "pool [%s] holds %s data, not %s", r.Pool().ID(), r.Pool().Kind(), kind)
	}
	buf, found := r.Pool().DeviceBuffer()
	if !found {
		return binding{}, errors.Wrapf(geoarena.ErrInvalidArgument, "pool [%s] has no device buffer", r.Pool().ID())
	}
	return binding{r: r, buf: buf}, nil
}

// Draw submits reads of every bound source, marks their pools referenced, and clears the bindings.
//
func (self *Submitter) Draw() error {
	defer self.clear()

	bound := self.vertices
	if self.indices != nil {
		bound = append(bound, *self.indices)
	}
	if len(bound) == 0 {
		return errors.New("draw with no bound sources")
	}
	for _, b := range bound {
		if !b.r.Valid() {
			return errors.Wrapf(geoarena.ErrStaleHandle, "draw from pool [%s]", b.r.Pool().ID())
		}
	}
	for _, b := range bound {
		b.r.Pool().NoteReferenced()
		if err := self.queue.Draw(b.buf, b.r.Offset(), b.r.Footprint()); err != nil {
			return errors.Wrapf(err, "unable to submit draw from pool [%s]", b.r.Pool().ID())
		}
	}
	self.draws++
	logrus.Debugf("draw #%d over [%d] sources", self.draws, len(bound))
	return nil
}

func (self *Submitter) Draws() int {
	return self.draws
}

func (self *Submitter) clear() {
	self.vertices = nil
	self.indices = nil
}
