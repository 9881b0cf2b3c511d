// Package rules is the statically compiled rule-module registry backing the
// strategy decision engine: each strategy_name a Strategy row names must
// have a concrete Go implementation registered here. Rule bodies stored in
// the database are treated as opaque documentation of the registered
// implementation, never evaluated.
package rules

import (
	"github.com/perpctl/controlplane/internal/domain"
)

// Context is the read-only runtime every rule receives: Candidates is
// populated for buy evaluation, Positions for sell evaluation.
type Context struct {
	Portfolio   domain.Portfolio
	MarketState domain.MarketState
	Account     domain.AccountInfo
	Candidates  []domain.Candidate
	Positions   []domain.Position
}

// Rule produces zero or more per-symbol decisions from a Context. Rules are
// deterministic and side-effect-free beyond the audit row their caller
// persists.
type Rule interface {
	Evaluate(ctx Context) map[string]domain.Decision
}

var registry = map[string]Rule{}

// Register adds a rule under name, overwriting any prior registration under
// the same name (package init order decides precedence, matching Go's usual
// registry idiom).
func Register(name string, r Rule) {
	registry[name] = r
}

// Lookup returns the rule registered under name, or nil if none is.
func Lookup(name string) Rule {
	return registry[name]
}

func init() {
	Register("momentum_breakout", MomentumBreakout{})
	Register("profit_guard", ProfitGuard{})
}
