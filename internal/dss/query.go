package dss

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// TimeLayout is the timestamp form DSS expects in range bounds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// ErrInvalidQuery is returned for a query without a chain RIC or a usable range.
var ErrInvalidQuery = errors.New("dss: invalid chain query")

// ChainQuery asks for the constituents of one chain over a date range.
type ChainQuery struct {
	ChainRIC string
	Start    time.Time
	End      time.Time
}

// Validate reports whether q can be sent.
func (q ChainQuery) Validate() error {
	switch {
	case q.ChainRIC == "":
		return fmt.Errorf("%w: chain RIC is required", ErrInvalidQuery)
	case q.Start.IsZero() || q.End.IsZero():
		return fmt.Errorf("%w: range start and end are required", ErrInvalidQuery)
	case q.End.Before(q.Start):
		return fmt.Errorf("%w: range end %s is before start %s", ErrInvalidQuery,
			q.End.UTC().Format(TimeLayout), q.Start.UTC().Format(TimeLayout))
	}
	return nil
}

type chainRequest struct {
	Request struct {
		ChainRics []string `json:"ChainRics"`
		Range     struct {
			Start string `json:"Start"`
			End   string `json:"End"`
		} `json:"Range"`
	} `json:"Request"`
}

// MarshalJSON encodes q as a HistoricalChainResolution request body.
func (q ChainQuery) MarshalJSON() ([]byte, error) {
	var r chainRequest
	r.Request.ChainRics = []string{q.ChainRIC}
	r.Request.Range.Start = q.Start.UTC().Format(TimeLayout)
	r.Request.Range.End = q.End.UTC().Format(TimeLayout)
	return json.Marshal(r)
}

// UnmarshalJSON decodes a HistoricalChainResolution request body.
// Only the first chain RIC is kept.
func (q *ChainQuery) UnmarshalJSON(b []byte) error {
	var r chainRequest
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if len(r.Request.ChainRics) == 0 {
		return fmt.Errorf("%w: no chain RIC in request", ErrInvalidQuery)
	}
	start, err := time.Parse(time.RFC3339Nano, r.Request.Range.Start)
	if err != nil {
		return fmt.Errorf("decoding range start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, r.Request.Range.End)
	if err != nil {
		return fmt.Errorf("decoding range end: %w", err)
	}
	*q = ChainQuery{ChainRIC: r.Request.ChainRics[0], Start: start, End: end}
	return nil
}
