package sibila

import (
	"fmt"

	"github.com/jndiogo/sibila-go/provider"
)

// strategyPreference is the fallback order tried in turn: the strongest
// constraint an adapter supports wins. Each backend class declares which
// of these it can execute via provider.Adapter.SupportedStrategies; chat
// format (the registry's Jinja-style template directory) is an orthogonal
// concern and plays no part in this choice.
var strategyPreference = []provider.Strategy{
	provider.StrategyGrammar,
	provider.StrategyToolCall,
	provider.StrategyResponseFormatSchema,
	provider.StrategyPrefill,
	provider.StrategyPromptOnly,
}

func needsSchema(s provider.Strategy) bool {
	return s == provider.StrategyToolCall || s == provider.StrategyResponseFormatSchema
}

// chooseStrategy picks the constraint strategy a Run call dispatches with:
// the first entry in strategyPreference the adapter supports and that fits
// whether a schema is actually available.
func chooseStrategy(adapter provider.Adapter, hasSchema bool) (provider.Strategy, error) {
	supported := map[provider.Strategy]bool{}
	for _, s := range adapter.SupportedStrategies() {
		supported[s] = true
	}

	for _, s := range strategyPreference {
		if !supported[s] {
			continue
		}
		if !hasSchema && needsSchema(s) {
			continue
		}
		return s, nil
	}
	return "", fmt.Errorf("sibila: %s supports no usable constraint strategy", adapter.Provider())
}
