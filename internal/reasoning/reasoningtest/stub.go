// Package reasoningtest provides a scripted reasoning service for tests.
package reasoningtest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ShayCichocki/taskweave/internal/reasoning"
	"github.com/ShayCichocki/taskweave/pkg/models"
)

// Reply is one scripted answer. Exactly one of Content or Err is used.
type Reply struct {
	Content string
	Err     error
	Usage   models.Usage
	// Delay is slept before answering, honouring ctx cancellation.
	Delay time.Duration
}

// Stub is a concurrency-safe scripted Service. Replies are matched by the
// first rule whose key is contained in the request prompt; each rule's
// replies are consumed in order and the last one repeats.
type Stub struct {
	mu       sync.Mutex
	rules    []*rule
	fallback *Reply
	requests []reasoning.Request
}

type rule struct {
	match   string
	replies []Reply
	next    int
}

// New returns an empty stub. Unmatched requests fail with a ServiceError.
func New() *Stub {
	return &Stub{}
}

// On scripts the replies for prompts containing match.
func (s *Stub) On(match string, replies ...Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, &rule{match: match, replies: replies})
	return s
}

// Default sets the reply used when no rule matches.
func (s *Stub) Default(r Reply) *Stub {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = &r
	return s
}

// Complete implements reasoning.Service.
func (s *Stub) Complete(ctx context.Context, req reasoning.Request) (*reasoning.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	reply, ok := s.pick(req.Prompt)
	s.mu.Unlock()

	if !ok {
		return nil, &reasoning.ServiceError{Op: "stub", Err: errUnscripted(req.Prompt)}
	}

	if reply.Delay > 0 {
		t := time.NewTimer(reply.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	if reply.Err != nil {
		return nil, reply.Err
	}
	return &reasoning.Response{
		Content: reply.Content,
		Usage:   reply.Usage,
		Latency: reply.Delay,
		Model:   "stub",
	}, nil
}

func (s *Stub) pick(prompt string) (Reply, bool) {
	for _, r := range s.rules {
		if !strings.Contains(prompt, r.match) || len(r.replies) == 0 {
			continue
		}
		reply := r.replies[r.next]
		if r.next < len(r.replies)-1 {
			r.next++
		}
		return reply, true
	}
	if s.fallback != nil {
		return *s.fallback, true
	}
	return Reply{}, false
}

// Requests returns a copy of every request received so far.
func (s *Stub) Requests() []reasoning.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]reasoning.Request(nil), s.requests...)
}

// Calls returns the number of requests whose prompt contains match.
func (s *Stub) Calls(match string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if strings.Contains(r.Prompt, match) {
			n++
		}
	}
	return n
}

type errUnscripted string

func (e errUnscripted) Error() string {
	return "no scripted reply for prompt: " + reasoning.Truncate(string(e), 80)
}
