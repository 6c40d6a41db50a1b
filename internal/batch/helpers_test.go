package batch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/tourneyq/internal/testutil"
)

// recorder collects the calls made against stub sessions and repositories, in order.
type recorder struct {
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// mutations returns recorded calls excluding session bookkeeping.
func (r *recorder) mutations() []string {
	var out []string
	for _, c := range r.calls {
		switch {
		case c == "begin", c == "commit", c == "rollback":
		case strings.HasPrefix(c, "savepoint "), strings.HasPrefix(c, "rollback_to "), strings.HasPrefix(c, "release "):
		default:
			out = append(out, c)
		}
	}
	return out
}

type stubSession struct {
	rec        *recorder
	commitErr  error
	committed  bool
	rolledBack bool
}

func (s *stubSession) Commit() error {
	s.rec.add("commit")
	s.committed = true
	return s.commitErr
}

func (s *stubSession) Rollback() error {
	s.rec.add("rollback")
	s.rolledBack = true
	return nil
}

// savepointSession adds Savepointer support to stubSession.
type savepointSession struct {
	*stubSession
	savepointErr error
}

func (s *savepointSession) Savepoint(_ context.Context, name string) error {
	s.rec.add("savepoint %s", name)
	return s.savepointErr
}

func (s *savepointSession) RollbackTo(_ context.Context, name string) error {
	s.rec.add("rollback_to %s", name)
	return nil
}

func (s *savepointSession) Release(_ context.Context, name string) error {
	s.rec.add("release %s", name)
	return nil
}

type stubProvider struct {
	rec          *recorder
	openErr      error
	commitErr    error
	savepoints   bool
	savepointErr error
	sessions     []*stubSession
	released     int
}

func newStubProvider() *stubProvider {
	return &stubProvider{rec: &recorder{}}
}

func (p *stubProvider) OpenSession(context.Context) (Session, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	p.rec.add("begin")
	s := &stubSession{rec: p.rec, commitErr: p.commitErr}
	p.sessions = append(p.sessions, s)
	if p.savepoints {
		return &savepointSession{stubSession: s, savepointErr: p.savepointErr}, nil
	}
	return s, nil
}

func (p *stubProvider) ReleaseCache() error {
	p.released++
	return nil
}

// memRepo is an in-memory Repository that records every mutation.
type memRepo struct {
	name      string
	rec       *recorder
	rows      map[any]Fields
	createErr map[any]error
	panicOn   any
}

func newMemRepo(name string, rec *recorder) *memRepo {
	return &memRepo{
		name:      name,
		rec:       rec,
		rows:      make(map[any]Fields),
		createErr: make(map[any]error),
	}
}

func (r *memRepo) Entity() string { return r.name }

func (r *memRepo) Create(_ context.Context, _ Session, fields Fields) (any, error) {
	id, _ := fields.Get("id")
	r.rec.add("create %s[%v]", r.name, id)
	if r.panicOn != nil && r.panicOn == id {
		panic("boom")
	}
	if err := r.createErr[id]; err != nil {
		return nil, err
	}
	if _, exists := r.rows[id]; exists {
		return nil, errors.New("UNIQUE constraint failed: " + r.name + ".id")
	}
	r.rows[id] = fields
	return id, nil
}

func (r *memRepo) GetByKey(_ context.Context, _ Session, key any) (any, bool, error) {
	if _, ok := r.rows[key]; !ok {
		return nil, false, nil
	}
	return key, true, nil
}

func (r *memRepo) Update(_ context.Context, _ Session, record any, fields Fields) error {
	r.rec.add("update %s[%v]", r.name, record)
	row := r.rows[record]
	for _, f := range fields {
		row = row.Set(f.Name, f.Value)
	}
	r.rows[record] = row
	return nil
}

func (r *memRepo) Delete(_ context.Context, _ Session, record any) error {
	r.rec.add("delete %s[%v]", r.name, record)
	delete(r.rows, record)
	return nil
}

func (r *memRepo) seed(ids ...string) {
	for _, id := range ids {
		r.rows[id] = Fields{F("id", id)}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(p *stubProvider, opts ...Option) *Queue {
	base := []Option{WithLogger(discardLogger()), WithNow(testutil.NewStepClock(time.Second).Now)}
	return New(p, append(base, opts...)...)
}
