package driver

import (
	"encoding/json"
	"fmt"

	"silt/internal/diag"
	"silt/internal/observ"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Path    string               `json:"path,omitempty"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

// appendTimingDiagnostic attaches the phase report to the bag as an info
// diagnostic whose note carries the JSON payload, keeping timings in-band
// with the degradations they accompany.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "file"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms", payload.Kind, payload.TotalMS)
	if payload.Path != "" {
		msg += " for " + payload.Path
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	pos := diag.Pos{Chunk: payload.Path, PC: -1}
	entry := diag.New(diag.SevInfo, diag.ObsTimings, pos, msg).WithNote(pos, string(data))

	if bag.Add(entry) {
		return
	}
	// The bag is full of real diagnostics; grow it rather than lose the
	// timing entry the caller asked for.
	overflow := diag.NewBag(bag.Len() + 1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
