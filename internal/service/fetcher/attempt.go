package fetcher

import (
	"context"
	"errors"
	"io"

	"github.com/vertextoedge/resumefetch/internal/domain"
)

type attemptOutcome int

const (
	// outcomeCompleted: response ended with the full resource delivered and verified
	outcomeCompleted attemptOutcome = iota
	// outcomeResume: response ended short of the declared length; resume
	// immediately from the new offset
	outcomeResume
	// outcomeTransient: retryable failure, subject to the backoff gate
	outcomeTransient
	// outcomeFatal: surfaced as the session error, never retried
	outcomeFatal
	// outcomeAborted: the session was aborted; no notification
	outcomeAborted
)

type attemptResult struct {
	outcome attemptOutcome
	err     error
}

// attempt owns a single request/response cycle. It issues exactly one
// request at its range offset, forwards header metadata to the session
// for validation, pumps body chunks downstream while the consumer has
// demand, and classifies whatever ends the cycle. It never retries on
// its own.
type attempt struct {
	session *Session
	offset  int64
}

func (a *attempt) run(ctx context.Context) attemptResult {
	s := a.session

	info, body, err := s.cfg.Client.Fetch(ctx, s.cfg.Path, a.offset)
	if err != nil {
		if ctx.Err() != nil {
			return attemptResult{outcome: outcomeAborted}
		}
		return attemptResult{outcome: outcomeTransient, err: err}
	}
	defer body.Close()

	if res, done := a.classifyStatus(info.StatusCode); done {
		return res
	}
	if err := s.acceptMetadata(info); err != nil {
		if ctx.Err() != nil {
			return attemptResult{outcome: outcomeAborted}
		}
		return attemptResult{outcome: outcomeFatal, err: err}
	}

	buf := make([]byte, s.readSize)
	for {
		if !s.waitDemand() {
			return attemptResult{outcome: outcomeAborted}
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if !s.deliver(buf[:n]) {
				return attemptResult{outcome: outcomeAborted}
			}
		}
		if rerr == nil {
			continue
		}
		if rerr == io.EOF || errors.Is(rerr, io.ErrUnexpectedEOF) {
			return s.classifyEnd()
		}
		if ctx.Err() != nil {
			return attemptResult{outcome: outcomeAborted}
		}
		// Mid-body network failure with no clean end: retryable.
		return attemptResult{outcome: outcomeTransient, err: rerr}
	}
}

// classifyStatus maps the response status onto the error taxonomy.
// Returns done=false for statuses the attempt should keep streaming.
func (a *attempt) classifyStatus(code int) (attemptResult, bool) {
	switch {
	case code >= 500:
		return attemptResult{outcome: outcomeTransient, err: domain.NewStatusError(code)}, true
	case code >= 400:
		return attemptResult{outcome: outcomeFatal, err: domain.NewStatusError(code)}, true
	case a.offset > 0 && code != 206:
		// The server answered a range request with the full resource.
		// Continuing would duplicate already-delivered bytes.
		return attemptResult{outcome: outcomeFatal, err: domain.ErrRangeNotSupported}, true
	default:
		return attemptResult{}, false
	}
}
