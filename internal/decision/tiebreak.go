package decision

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ProjectTradeAI/agentrader/internal/models"
)

const tiebreakSystemPrompt = `You are the final arbiter for a trading desk whose analysts disagree.
Weigh each analyst's action, confidence and rationale, then answer in exactly this format:
ACTION: <BUY|SELL|HOLD>
CONFIDENCE: <0-100>
RATIONALE: <one sentence>`

// tiebreakVerdict is the parsed LLM ruling on a contested vote.
type tiebreakVerdict struct {
	Action     models.Action
	Confidence float64
	Rationale  string
}

// escalate asks the completion chain to resolve a contested vote with its
// own bounded deadline.
func (a *Aggregator) escalate(ctx context.Context, symbol string, signals []models.AnalystSignal, scores map[models.Action]float64) (*tiebreakVerdict, error) {
	timeout := a.cfg.TiebreakTimeout
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := a.tiebreak.Complete(callCtx, tiebreakSystemPrompt, buildTiebreakPrompt(symbol, signals, scores))
	if err != nil {
		return nil, err
	}
	return parseTiebreak(text)
}

// buildTiebreakPrompt renders a compact summary of the contested vote.
func buildTiebreakPrompt(symbol string, signals []models.AnalystSignal, scores map[models.Action]float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Symbol: %s\n", symbol))
	sb.WriteString(fmt.Sprintf("Weighted scores: BUY %.1f, SELL %.1f, HOLD %.1f\n\nAnalyst opinions:\n",
		scores[models.Buy], scores[models.Sell], scores[models.Hold]))
	for _, sig := range signals {
		sb.WriteString(fmt.Sprintf("- %s: %s (confidence %.0f) - %s\n",
			sig.Analyst, sig.Action, sig.Confidence, sig.Rationale))
	}
	sb.WriteString("\nThe vote is contested. Pick one action.")
	return sb.String()
}

// parseTiebreak extracts the action, optional confidence, and rationale.
// It tolerates surrounding prose; an answer with no recognizable action is
// a tie-break failure.
func parseTiebreak(text string) (*tiebreakVerdict, error) {
	v := &tiebreakVerdict{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ACTION:"):
			v.Action = parseAction(line[len("ACTION:"):])
		case strings.HasPrefix(upper, "CONFIDENCE:"):
			raw := strings.TrimSpace(line[len("CONFIDENCE:"):])
			raw = strings.TrimSuffix(raw, "%")
			if f, err := strconv.ParseFloat(raw, 64); err == nil {
				v.Confidence = models.ClampConfidence(f)
			}
		case strings.HasPrefix(upper, "RATIONALE:"):
			v.Rationale = strings.TrimSpace(line[len("RATIONALE:"):])
		}
	}

	if v.Action == "" {
		// Fall back to the first action word anywhere in the reply.
		for _, word := range strings.Fields(strings.ToUpper(text)) {
			word = strings.Trim(word, ".,:;!")
			if word == "BUY" || word == "SELL" || word == "HOLD" {
				v.Action = models.Action(word)
				break
			}
		}
	}
	if v.Action == "" {
		return nil, fmt.Errorf("no action in tie-break response %q", truncate(text, 120))
	}
	return v, nil
}

func parseAction(raw string) models.Action {
	switch strings.ToUpper(strings.Trim(strings.TrimSpace(raw), ".,:;!")) {
	case "BUY":
		return models.Buy
	case "SELL":
		return models.Sell
	case "HOLD":
		return models.Hold
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
