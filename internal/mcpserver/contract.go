package mcpserver

// ProjectLayoutContract describes how a LoreKeeper project is stored on
// disk so LLM consumers can interpret item content.
const ProjectLayoutContract = `# LoreKeeper Project Layout

A project is a directory. Every file is UTF-8.

## Files

| Path | Content |
|------|---------|
| ` + "`lorekeeper.json`" + ` | Ordered index of every item: ` + "`{\"chapters\":[...],\"characters\":[...],\"lore\":[...]}`" + ` |
| ` + "`chapters/{id}.md`" + ` | Chapter text in Markdown |
| ` + "`characters/{id}.json`" + ` | Character sheet |
| ` + "`lore/{id}.json`" + ` | Lore entry |
| ` + "`settings.json`" + ` | Project settings and UI cursor |
| ` + "`stats.json`" + ` | Daily goal and words written per day |
| ` + "`ainotes.json`" + ` | Cached chapter analyses keyed by chapter id |

## Items

Registry entries carry ` + "`id`" + `, ` + "`title`" + ` and, for chapters, ` + "`lastModified`" + `
(unix milliseconds). Ids have the form ` + "`{millis}_{slug}`" + ` where slug is the
lowercase ASCII form of the title, e.g. ` + "`1700000000000_le-reveil`" + `. The id is the
file stem and changes when the item is retitled.

Chapter order in the registry is the manuscript order.

## Character sheet

` + "```" + `json
{"id": "...", "name": "Alice", "role": "", "description": "", "appearance": "", "personality": ""}
` + "```" + `

## Lore entry

` + "```" + `json
{"id": "...", "title": "La Guilde", "category": "", "content": ""}
` + "```" + `

## Mentions

Chapters reference characters and lore entries by title with double
brackets: ` + "`[[Alice]]`" + `. Matching ignores case and accents.

## AI notes

Each analysis holds ` + "`notes`" + ` (title and description of facts established by the
chapter), a ` + "`review`" + ` and ` + "`updatedAt`" + `. An analysis is outdated when its chapter,
the previous chapter or the previous chapter's analysis changed after it.
`
