package mcpserver

// FrontmatterContract describes the header fields the sync engine reads and
// writes, for LLM consumers preparing notes for Kadi4Mat.
const FrontmatterContract = `# Kadi4Mat Frontmatter Contract

A note is synced to one Kadi4Mat record. The YAML header at the top of the
note controls the record; every key starting with ` + "`" + `kadi_` + "`" + ` belongs to the sync
engine.

## Fields you may set before a sync

| Key | Meaning |
|-----|---------|
| ` + "`" + `kadi_title` + "`" + ` | Record title. Defaults to the file name without extension. |
| ` + "`" + `kadi_identifier` + "`" + ` | Record identifier. Generated from the title and the time on first sync when absent. |
| ` + "`" + `kadi_state` + "`" + ` | ` + "`" + `active` + "`" + ` or ` + "`" + `inactive` + "`" + `. Other values fall back to the default state. |
| ` + "`" + `kadi_visibility` + "`" + ` | ` + "`" + `private` + "`" + ` or ` + "`" + `public` + "`" + `. Other values fall back to the default visibility. |
| ` + "`" + `kadi_tags` + "`" + ` | Extra record tags: a list, or one string split on commas and whitespace. |
| ` + "`" + `kadi_license` + "`" + ` | License identifier, e.g. ` + "`" + `CC-BY-4.0` + "`" + ` (see the list_licenses tool). |

The host ` + "`" + `tags` + "`" + ` field is sent as record tags too, before ` + "`" + `kadi_tags` + "`" + `. A leading
` + "`" + `#` + "`" + ` is removed and duplicates are dropped.

## Fields written by a sync

| Key | Meaning |
|-----|---------|
| ` + "`" + `kadi_id` + "`" + ` | Numeric record id. Its presence makes the next sync an update. |
| ` + "`" + `kadi_identifier` + "`" + ` | Identifier the record was saved with. |
| ` + "`" + `kadi_synced` + "`" + ` | Time of the last successful sync (ISO-8601, UTC, milliseconds). |
| ` + "`" + `kadi_modified` + "`" + ` | Time of the last update. |
| ` + "`" + `kadi_state` + "`" + `, ` + "`" + `kadi_visibility` + "`" + `, ` + "`" + `kadi_license` + "`" + ` | Values the record was saved with. |

Do not edit ` + "`" + `kadi_id` + "`" + ` by hand: a wrong id updates someone else's record.

## Everything else

Every other header key becomes a record metadata entry ("extra"), in header
order. Numbers, booleans, dates, nested maps and lists keep their type; a
string such as ` + "`" + `21.5 °C` + "`" + ` becomes a float with a unit. The display fields
` + "`" + `aliases` + "`" + `, ` + "`" + `alias` + "`" + `, ` + "`" + `cssclasses` + "`" + `, ` + "`" + `cssclass` + "`" + ` and ` + "`" + `position` + "`" + ` are never sent.

The record title shown to the user defaults as above; the record description
is the note body without its header and without its first level-one heading.

## Example

` + "```" + `markdown
---
kadi_title: Tensile test 2024-03
kadi_visibility: private
kadi_license: CC-BY-4.0
tags: [materials]
kadi_tags: steel, tensile
temperature: 21.5 °C
operator: jdoe
---

# Tensile test

Specimen S-12 broke at 512 MPa.
` + "```" + `
`
