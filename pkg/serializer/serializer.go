// Esquie - Discord companion bot
// License: MIT
//
// Copyright (c) 2026 Esquie contributors

// Package serializer runs at most one request at a time against the
// completion backend and queues requests from other users in arrival order.
package serializer

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/esquie-bot/esquie/pkg/logger"
)

// Request is one unit of work owned by a user.
type Request[T any] struct {
	ID       string
	UserID   string
	UserName string
	Payload  T

	// Notice is the "please wait" message sent while the request was
	// queued. It becomes the status message once the request runs.
	Notice *discordgo.Message
}

func NewRequest[T any](userID, userName string, payload T) *Request[T] {
	return &Request[T]{
		ID:       uuid.NewString(),
		UserID:   userID,
		UserName: userName,
		Payload:  payload,
	}
}

// Processor handles one request while the slot is held.
type Processor[T any] func(ctx context.Context, req *Request[T])

// Admission is the outcome of Submit.
type Admission[T any] struct {
	// Queued is false when the caller must run the request with Execute.
	Queued    bool
	Position  int
	OwnerName string
	// Superseded is the caller's earlier waiting request that req replaced.
	Superseded *Request[T]
	// StaleNotice is the wait notice of Superseded, if it had one.
	StaleNotice *discordgo.Message
}

// Snapshot describes the slot for health reporting.
type Snapshot struct {
	Busy      bool   `json:"busy"`
	Owner     string `json:"owner,omitempty"`
	OwnerName string `json:"owner_name,omitempty"`
	Waiting   int    `json:"waiting"`
}

// Serializer owns the processing slot and the FIFO waiting list.
//
// active counts requests that have been admitted and not yet finished,
// including continuations blocked on sem. The waiting list is only drained
// when active drops to zero, so at most one drain runs at a time.
type Serializer[T any] struct {
	process Processor[T]
	sem     chan struct{}

	mu        sync.Mutex
	owner     string
	ownerName string
	active    int
	waiting   []*Request[T]
}

func New[T any](process Processor[T]) *Serializer[T] {
	return &Serializer[T]{
		process: process,
		sem:     make(chan struct{}, 1),
	}
}

// Submit admits req or appends it to the waiting list. A request from the
// current owner is a continuation and is never queued. A user keeps at most
// one waiting request: a newer one takes the place of the older. While
// anyone is waiting, newcomers queue even if the slot is momentarily free.
func (s *Serializer[T]) Submit(req *Request[T]) Admission[T] {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == 0 && len(s.waiting) == 0 {
		s.active++
		s.owner, s.ownerName = req.UserID, req.UserName
		return Admission[T]{}
	}
	if s.owner == req.UserID {
		s.active++
		logger.DebugCF("serializer", "Continuation from current owner", map[string]interface{}{
			"request_id": req.ID,
			"user_id":    req.UserID,
		})
		return Admission[T]{}
	}
	ownerName := s.currentName()
	for i, w := range s.waiting {
		if w.UserID == req.UserID {
			s.waiting[i] = req
			logger.InfoCF("serializer", "Waiting request superseded", map[string]interface{}{
				"request_id":  req.ID,
				"replaced_id": w.ID,
				"user_id":     req.UserID,
				"position":    i + 1,
			})
			return Admission[T]{
				Queued:      true,
				Position:    i + 1,
				OwnerName:   ownerName,
				Superseded:  w,
				StaleNotice: w.Notice,
			}
		}
	}

	s.waiting = append(s.waiting, req)
	logger.InfoCF("serializer", "Request queued", map[string]interface{}{
		"request_id": req.ID,
		"user_id":    req.UserID,
		"owner_id":   s.owner,
		"position":   len(s.waiting),
	})
	return Admission[T]{Queued: true, Position: len(s.waiting), OwnerName: ownerName}
}

// AttachNotice records the wait notice for a queued request. It returns
// false when the request already left the queue; the caller should then
// discard the notice.
func (s *Serializer[T]) AttachNotice(req *Request[T], notice *discordgo.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.waiting {
		if w == req {
			w.Notice = notice
			return true
		}
	}
	return false
}

// Execute runs an admitted request and then drains the waiting list one
// entry at a time.
func (s *Serializer[T]) Execute(ctx context.Context, req *Request[T]) {
	s.runOne(ctx, req)
	s.drain(ctx)
}

// Acquire blocks until the slot is free and marks userID as its owner. The
// request must have been admitted by Submit.
func (s *Serializer[T]) Acquire(ctx context.Context, userID, userName string) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for processing slot: %w", ctx.Err())
	}
	s.mu.Lock()
	s.owner, s.ownerName = userID, userName
	s.mu.Unlock()
	return nil
}

// Release frees the slot. When it was the last admitted request the owner
// is cleared.
func (s *Serializer[T]) Release() {
	s.finish()
	<-s.sem
}

func (s *Serializer[T]) finish() {
	s.mu.Lock()
	s.active--
	if s.active == 0 {
		s.owner, s.ownerName = "", ""
	}
	s.mu.Unlock()
}

func (s *Serializer[T]) runOne(ctx context.Context, req *Request[T]) {
	if err := s.Acquire(ctx, req.UserID, req.UserName); err != nil {
		logger.WarnCF("serializer", "Gave up waiting for slot", map[string]interface{}{
			"request_id": req.ID,
			"error":      err,
		})
		s.finish()
		return
	}
	defer s.Release()
	defer func() {
		if r := recover(); r != nil {
			logger.ErrorCF("serializer", "Request processing panicked", map[string]interface{}{
				"request_id": req.ID,
				"panic":      fmt.Sprint(r),
				"stack":      string(debug.Stack()),
			})
		}
	}()

	logger.DebugCF("serializer", "Processing request", map[string]interface{}{
		"request_id": req.ID,
		"user_id":    req.UserID,
	})
	s.process(ctx, req)
}

func (s *Serializer[T]) drain(ctx context.Context) {
	for {
		s.mu.Lock()
		if s.active != 0 || len(s.waiting) == 0 {
			s.mu.Unlock()
			return
		}
		next := s.waiting[0]
		s.waiting[0] = nil
		s.waiting = s.waiting[1:]
		s.active++
		s.owner, s.ownerName = next.UserID, next.UserName
		remaining := len(s.waiting)
		s.mu.Unlock()

		logger.InfoCF("serializer", "Processing queued request", map[string]interface{}{
			"request_id": next.ID,
			"user_id":    next.UserID,
			"remaining":  remaining,
		})
		s.runOne(ctx, next)
	}
}

// currentName is the owner's name, or the next in line while the slot is
// between requests. Callers hold mu.
func (s *Serializer[T]) currentName() string {
	if s.ownerName == "" && len(s.waiting) > 0 {
		return s.waiting[0].UserName
	}
	return s.ownerName
}

func (s *Serializer[T]) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Busy:      s.active > 0,
		Owner:     s.owner,
		OwnerName: s.ownerName,
		Waiting:   len(s.waiting),
	}
}
