package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ttvdevil/ttvdevil/pkg/transit"
)

// TransitsFromBodies flattens the recorded transits of a scan. Transits are
// numbered from zero per body and carry their residual from the body's
// linear ephemeris when there are at least two.
func TransitsFromBodies(bodies []*transit.Body) []*Transit {
	var out []*Transit
	for _, b := range bodies {
		ttvs := b.TTVs()
		for i, t := range b.TransitTimes {
			tr := &Transit{Body: b.Name, Epoch: i, Time: t}
			if ttvs != nil {
				v := ttvs[i]
				tr.TTV = &v
			}
			out = append(out, tr)
		}
	}
	return out
}

// StatusFor maps the outcome of a scan to a run status.
func StatusFor(scanErr error) RunStatus {
	switch {
	case scanErr == nil:
		return RunStatusCompleted
	case errors.Is(scanErr, context.Canceled), errors.Is(scanErr, context.DeadlineExceeded):
		return RunStatusCancelled
	default:
		return RunStatusFailed
	}
}

// RecordScan stores whatever transits the scan found, including those of a
// failed scan, and closes the run with the matching status.
func RecordScan(ctx context.Context, st Store, runID string, bodies []*transit.Body, scanErr error) error {
	transits := TransitsFromBodies(bodies)
	if len(transits) > 0 {
		if err := st.SaveTransits(ctx, runID, transits); err != nil {
			return err
		}
	}

	status := StatusFor(scanErr)
	var msg *string
	if scanErr != nil {
		s := scanErr.Error()
		msg = &s
	}

	event := &Event{
		RunID:   &runID,
		Level:   EventLevelInfo,
		Message: fmt.Sprintf("scan %s with %d transits", status, len(transits)),
	}
	if scanErr != nil {
		event.Level = EventLevelError
		details, err := json.Marshal(map[string]string{
			"error": scanErr.Error(),
			"class": string(transit.ClassOf(scanErr)),
		})
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		d := string(details)
		event.Details = &d
	}
	if err := st.AppendEvent(ctx, event); err != nil {
		return err
	}

	return st.FinishRun(ctx, runID, status, len(transits), msg)
}
