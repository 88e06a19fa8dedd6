package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/doujins-org/apireckit/apiname"
)

const suggestSystemPrompt = "You recommend Java APIs. Answer with one fully " +
	"qualified API per line, most relevant first, in the form " +
	"package.Class.method. No explanations."

// SuggestAPIs asks the model for a ranked list of API recommendations for a
// programming question and parses the reply into canonical identifiers.
// Lines that do not parse as identifiers are skipped; duplicates keep their
// first (best) rank.
func (c *Client) SuggestAPIs(ctx context.Context, question string, n int) ([]string, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question is required")
	}
	if n <= 0 {
		n = 10
	}

	user := fmt.Sprintf("Recommend the %d best Java APIs for this question:\n%s", n, question)
	resp, err := c.Query(ctx, suggestSystemPrompt, user)
	if err != nil {
		return nil, err
	}

	return ParseRanking(resp.Text, n), nil
}

// ParseRanking extracts ranked API identifiers from model output. It accepts
// one identifier per line with optional "1." / "-" style list markers, and
// tolerates chatter lines by dropping anything that does not normalize to a
// dotted identifier.
func ParseRanking(text string, limit int) []string {
	var out []string
	seen := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimLeft(line, "-*0123456789.) \t")
		if line == "" {
			continue
		}
		// Identifier-per-line replies sometimes carry trailing commentary
		// after whitespace; the identifier is the first token.
		if i := strings.IndexAny(line, " \t"); i > 0 {
			line = line[:i]
		}

		api, err := apiname.FromString(line)
		if err != nil || api.Qualifier == "" {
			continue
		}
		id := api.String()
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}
