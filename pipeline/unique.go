package pipeline

import (
	"runtime"
	"sync"

	"github.com/geoknoesis/rdfstream/rdf"
	"github.com/geoknoesis/rdfstream/sorter"
)

// Unique removes duplicate statements by sorting each pass. With
// mergeContexts, a triple found in more than one graph is emitted once in the
// default graph; a triple found in a single graph keeps it.
func Unique(grouper sorter.Grouper, mergeContexts bool) Processor {
	return NewProcessor(0, func(next Handler) Handler {
		g := grouper
		if g == nil {
			g = sorter.Default(nil)
		}
		return &uniqueHandler{Forwarder: Forwarder{Next: next}, grouper: g, merge: mergeContexts}
	})
}

type uniqueHandler struct {
	Forwarder
	grouper sorter.Grouper
	merge   bool

	session sorter.Session
	bufs    sync.Pool
}

func (u *uniqueHandler) Start() error {
	session, err := u.grouper.Open(true)
	if err != nil {
		return NewHandlerError("unique", err)
	}
	u.session = session
	return u.Next.Start()
}

func (u *uniqueHandler) Statement(q rdf.Quad) error {
	var buf []byte
	if v, ok := u.bufs.Get().(*[]byte); ok {
		buf = (*v)[:0]
	}
	buf = sorter.AppendQuad(buf, q)
	err := u.session.Emit(buf)
	u.bufs.Put(&buf)
	if err != nil {
		return NewHandlerError("unique", err)
	}
	return nil
}

func (u *uniqueHandler) End() error {
	session := u.session
	u.session = nil
	var err error
	if u.merge {
		err = u.drainMerged(session)
	} else {
		err = session.Drain(runtime.GOMAXPROCS(0), func(rec []byte) error {
			q, err := sorter.NewReader(rec).Quad()
			if err != nil {
				return err
			}
			return u.Next.Statement(q)
		})
	}
	if cerr := session.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return NewHandlerError("unique", err)
	}
	return u.Next.End()
}

// drainMerged relies on the graph being the last field: all copies of a
// triple are adjacent in the sorted output.
func (u *uniqueHandler) drainMerged(session sorter.Session) error {
	var (
		current rdf.Quad
		graphs  int
		have    bool
		reader  = sorter.NewReader(nil)
	)
	flush := func() error {
		if graphs > 1 {
			current.G = nil
		}
		return u.Next.Statement(current)
	}
	err := session.Drain(1, func(rec []byte) error {
		reader.Reset(rec)
		q, err := reader.Quad()
		if err != nil {
			return err
		}
		if have && q.Triple() == current.Triple() {
			graphs++
			return nil
		}
		if have {
			if err := flush(); err != nil {
				return err
			}
		}
		current, graphs, have = q, 1, true
		return nil
	})
	if err != nil || !have {
		return err
	}
	return flush()
}

func (u *uniqueHandler) Close() error {
	if u.session != nil {
		_ = u.session.Close()
		u.session = nil
	}
	return u.Next.Close()
}
