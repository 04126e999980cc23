package policy

// Verdict is the result of Decide: the decision plus the rule that
// produced it, if any (mode-category defaults carry no matched rule).
type Verdict struct {
	Decision Decision
	Rule     string
}

// Decide evaluates the ordered rule precedence:
//  1. built-in deny list (first match wins)
//  2. user deny list
//  3. user ask list (deliberately overrides allow, so a user can narrow one)
//  4. user allow list
//  5. mode-category default
func (c *Config) Decide(tool string, args map[string]any) Verdict {
	primaryArg, hasPrimaryArg := PrimaryArg(tool, args)

	if matched, rule := MatchAny(c.builtinDeny, tool, primaryArg, hasPrimaryArg); matched {
		return Verdict{Decision: Deny, Rule: rule}
	}
	if matched, rule := MatchAny(c.Deny, tool, primaryArg, hasPrimaryArg); matched {
		return Verdict{Decision: Deny, Rule: rule}
	}
	if matched, rule := MatchAny(c.Ask, tool, primaryArg, hasPrimaryArg); matched {
		return Verdict{Decision: Ask, Rule: rule}
	}
	if matched, rule := MatchAny(c.Allow, tool, primaryArg, hasPrimaryArg); matched {
		return Verdict{Decision: Allow, Rule: rule}
	}

	return Verdict{Decision: categoryDefault(CategoryOf(tool), c.Mode)}
}

// Prompter resolves an Ask decision to a yes/no outcome. Interactive
// sessions read a line from stdin; non-interactive sessions without
// auto-yes must be explicit and refuse; auto-yes accepts unconditionally.
// This mirrors the REPL's stdin collaborator but keeps the engine's own
// contract pure of any particular terminal.
type Prompter interface {
	// Confirm presents tool/arg/rule context and returns the user's
	// decision. Implementations that cannot prompt (e.g. non-interactive
	// print mode without auto-yes) must return false, nil.
	Confirm(tool string, primaryArg string, rule string) (bool, error)
}

// AutoDeny never confirms; used for non-interactive sessions without
// auto-yes, and for subagents, whose Ask decisions always resolve Deny.
type AutoDeny struct{}

func (AutoDeny) Confirm(string, string, string) (bool, error) { return false, nil }

// AutoAllow always confirms; used when the session was started with
// auto-yes.
type AutoAllow struct{}

func (AutoAllow) Confirm(string, string, string) (bool, error) { return true, nil }

// CheckPermission combines Decide with an interactive prompt:
//   - Allow -> allowed=true, no prompt
//   - Deny -> allowed=false
//   - Ask -> delegated to prompter (AutoDeny/AutoAllow/a real stdin reader)
func (c *Config) CheckPermission(tool string, args map[string]any, prompter Prompter) (allowed bool, verdict Verdict, err error) {
	v := c.Decide(tool, args)
	switch v.Decision {
	case Allow:
		return true, v, nil
	case Deny:
		return false, v, nil
	default: // Ask
		primaryArg, _ := PrimaryArg(tool, args)
		ok, err := prompter.Confirm(tool, primaryArg, v.Rule)
		if err != nil {
			return false, v, err
		}
		return ok, v, nil
	}
}
