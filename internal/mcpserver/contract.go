package mcpserver

// LinkSyntax documents how links between notes are written and how a link
// target is matched to a note.
const LinkSyntax = `# Link Syntax

Notes are Markdown files. A note links to another note with a wikilink:

` + "```" + `markdown
See [[Project plan]] and [[meetings/2025-01-20|last standup]].
Jump to [[design#Storage]].
` + "```" + `

## Parsing

1. A link is the text between ` + "`[[`" + ` and ` + "`]]`" + `. Triple brackets are not links.
2. Text after ` + "`|`" + ` is display text and is ignored when resolving.
3. Text after ` + "`#`" + ` is a heading anchor and is ignored when resolving.
4. Surrounding whitespace is trimmed. Empty targets are dropped.
5. Links are collected from the whole file, frontmatter included.

## Resolution

A target matches, in order:

1. a note **path** relative to the vault root (` + "`meetings/2025-01-20.md`" + `),
2. a note **title**,
3. a path after appending ` + "`.md`" + ` (` + "`[[meetings/2025-01-20]]`" + `).

A path always wins over a title. When two notes share a title the one
registered later owns it, and the collision is listed by the ` + "`build_report`" + ` tool.

## Titles

A note's title is, in order: the ` + "`title`" + ` frontmatter field, the first
level-one heading, the file name without ` + "`.md`" + `.

## Unresolved links

A link whose target matches nothing creates no edge. It is listed under
` + "`unresolved`" + ` in the build report.
`
