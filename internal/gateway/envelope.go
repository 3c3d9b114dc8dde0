package gateway

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// ParseTurnProposal decodes the model's raw completion into a
// TurnProposal. Models wrap JSON in prose or code fences and emit
// trailing commas often enough that we extract first and repair before
// giving up.
func ParseTurnProposal(raw string) (*TurnProposal, error) {
	jsonStr := extractJSON(raw)
	if jsonStr == "" {
		return nil, fmt.Errorf("no JSON found in model response")
	}

	var proposal TurnProposal
	if err := json.Unmarshal([]byte(jsonStr), &proposal); err == nil {
		return validateProposal(&proposal)
	}

	repaired, repairErr := jsonrepair.JSONRepair(jsonStr)
	if repairErr != nil {
		return nil, fmt.Errorf("model response is not valid JSON and repair failed: %w", repairErr)
	}

	log.Debug().
		Int("original_bytes", len(jsonStr)).
		Int("repaired_bytes", len(repaired)).
		Msg("repaired malformed model response")

	if err := json.Unmarshal([]byte(repaired), &proposal); err != nil {
		return nil, fmt.Errorf("model response unparseable after repair: %w", err)
	}
	return validateProposal(&proposal)
}

// validateProposal enforces envelope-level consistency: a proposal that
// claims readiness must carry a plan with at least one task.
func validateProposal(p *TurnProposal) (*TurnProposal, error) {
	if p.Message == "" {
		return nil, fmt.Errorf("model response has no message")
	}
	if p.ReadyToGenerate && (p.Plan == nil || len(p.Plan.Tasks) == 0) {
		// Downgrade rather than fail the turn: keep the reply, drop the
		// readiness claim.
		log.Warn().Msg("model claimed readiness without a usable plan, downgrading")
		p.ReadyToGenerate = false
		p.Plan = nil
	}
	return p, nil
}

// extractJSON pulls the first complete JSON object or array out of
// mixed text, handling fenced code blocks.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	if strings.Contains(raw, "```") {
		lines := strings.Split(raw, "\n")
		var jsonLines []string
		inCodeBlock := false

		for _, line := range lines {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inCodeBlock = !inCodeBlock
				continue
			}
			if inCodeBlock {
				jsonLines = append(jsonLines, line)
			}
		}

		if len(jsonLines) > 0 {
			return strings.TrimSpace(strings.Join(jsonLines, "\n"))
		}
	}

	startIdx := strings.Index(raw, "{")
	openChar, closeChar := byte('{'), byte('}')
	if startIdx == -1 {
		startIdx = strings.Index(raw, "[")
		if startIdx == -1 {
			return ""
		}
		openChar, closeChar = '[', ']'
	}

	depth := 0
	for i := startIdx; i < len(raw); i++ {
		switch raw[i] {
		case openChar:
			depth++
		case closeChar:
			depth--
			if depth == 0 {
				return raw[startIdx : i+1]
			}
		}
	}

	// Truncated output; let the repair pass close it.
	return raw[startIdx:]
}
