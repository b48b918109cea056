package api

import (
	"net/http"

	"go-scada-flow/internal/engine"
	"go-scada-flow/internal/models"
)

// ValidationViolation represents a plant condition an operator should look at.
type ValidationViolation struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// GetDiagnostics reports, for every transfer rule, whether it would fire on
// the next tick and why not, plus plant-level warnings; GET /api/diagnostics.
func (s *Server) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	state, rules := s.sim.Inspect()

	violations := []ValidationViolation{}

	// Return rules skip the destination check, so a full main tank silently
	// drops whatever they move
	for _, d := range rules {
		if !d.CanFire || d.Direction != string(models.DirectionReturn) {
			continue
		}
		target, ok := state.Tank(d.Target)
		if ok && target.Amount >= target.Capacity-models.Epsilon {
			violations = append(violations, ValidationViolation{
				Code:    "return_into_full_tank",
				Message: "Return rule will fire into a full tank and discard fluid",
				Context: map[string]interface{}{"ruleId": d.ID, "tankId": d.Target},
			})
		}
	}

	// Open valves that cannot move anything
	for _, d := range rules {
		if d.CanFire || d.Reason == engine.ReasonValveClosed {
			continue
		}
		violations = append(violations, ValidationViolation{
			Code:    "open_valve_idle",
			Message: "Valve is open but its rule cannot fire",
			Context: map[string]interface{}{"ruleId": d.ID, "valveId": d.Valve, "reason": string(d.Reason)},
		})
	}

	firing := 0
	for _, d := range rules {
		if d.CanFire {
			firing++
		}
	}
	if firing == 0 {
		violations = append(violations, ValidationViolation{Code: "idle", Message: "No transfer rule can fire"})
	}

	result := map[string]interface{}{
		"networkId":  state.NetworkID,
		"tick":       state.Tick,
		"firing":     firing,
		"violations": violations,
		"rules":      rules,
	}
	s.writeSuccess(w, result, "Diagnostics completed")
}
