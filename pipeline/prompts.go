package pipeline

// Stage system prompts. Each auxiliary stage receives the turn's narrative
// and returns strict JSON; the schemas here must stay in sync with the
// decode structs in stages.go.

const memoryPrompt = `You extract memorable facts from a story passage for the characters involved.
Return JSON only:
{"memories": [{"entity_id": "...", "text": "...", "tag": "bond|conflict|secret|trauma|growth|promise|general", "importance": 1, "subject": "...", "keywords": ["..."]}]}
Rules: at most 2 memories per character. importance is 1 (minor), 2 (significant) or 3 (defining).
Only record things a character would actually remember. Empty list if nothing qualifies.`

const postLogicPrompt = `You analyze a story passage and report state changes.
Return JSON only:
{"relationship_deltas": {"entity_id": -5}, "location": "", "mood": "", "active_cast": ["entity_id"], "events": [{"text": "...", "scope": "local|regional|global"}], "deaths": ["entity_id"], "profile_updates": {"entity_id": {"fact_key": "fact value"}}}
Rules: relationship deltas range -10..10. Omit or leave empty anything unchanged.
active_cast lists every character present at the end of the passage.
Record an event only for developments that outlast the scene.`

const choicesPrompt = `You propose the player's next actions after a story passage.
Return JSON only: {"choices": ["...", "...", "..."]}
Rules: exactly 3 choices, each a short first-person action. Vary tone: at least
one cautious and one bold option. Never repeat the previous player input.`

const summaryPrompt = `You maintain a rolling summary of an ongoing story.
Given the previous summary and recent dialogue, return a replacement summary
as plain text. Keep established facts, fold in new developments, stay under
300 words. No preamble.`
