package labeler

// DefaultRules is the ruleset sent to the classification service when the
// caller does not provide one.
const DefaultRules = `Label an issue "good first issue" only when a newcomer to the project could
resolve it without deep knowledge of the codebase:

- the issue describes a single, well-scoped change
- reproduction steps or a concrete description of the fix are included
- it does not require architectural decisions or touching many subsystems
- it is not blocked on other work

When in doubt, do not apply the label.`
