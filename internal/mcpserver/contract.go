package mcpserver

// RegionFormatURI is the resource URI for the managed region contract.
const RegionFormatURI = "memman://managed-region"

// RegionFormatContract tells LLM consumers which parts of the instruction
// documents they may edit and which ones the sync engine owns.
const RegionFormatContract = `# Managed Region Contract

memman keeps two instruction documents in step: the primary (CLAUDE.md)
and the mirror (AGENTS.md). Each document may contain one managed region
written by the sync engine.

## Markers

` + "```" + `markdown
<!-- memman:start id=from-primary -->
## Synced from CLAUDE.md

- Never commit .env files to git
<!-- memman:end id=from-primary -->
` + "```" + `

- ` + "`" + `from-primary` + "`" + ` lives in the mirror and holds entries copied from the primary.
- ` + "`" + `from-mirror` + "`" + ` lives in the primary and holds entries copied from the mirror.

## Rules

1. **Do not edit inside a managed region.** The next sync rewrites it. Edit
   the source document instead and run ` + "`" + `sync_documents` + "`" + `.
2. **Everything outside the markers is user-owned** and is never rewritten.
3. Entries shorter than ten characters, and entries that describe one
   assistant's internal configuration (hooks, settings files, MCP server
   lists), are not synced.
4. Entries that name one assistant are only synced toward that assistant's
   document. Phrases such as "Claude should" are rewritten to "The AI
   assistant should" on the way across.
5. When both documents changed since the last sync, modified entries are
   reported as conflicts and left for a human to resolve.

## Recording corrections

Use ` + "`" + `record_correction` + "`" + ` when the user corrects you. Give the wrong
approach as ` + "`" + `incorrect` + "`" + ` and the right one as ` + "`" + `correct` + "`" + `. Confident
corrections become memory entries and are picked up by later syncs.
`
