package mcpserver

// PostFormatContract describes the source layout and front matter that the
// site builder expects when LLM consumers prepare posts.
const PostFormatContract = `# Ansuz Post Format Contract

Every post lives in its own directory under the content root:

` + "```" + `
content/
  my-first-post/
    index.md          # REQUIRED, the post itself
    diagram.png       # OPTIONAL assets, copied next to the rendered page
    img/photo.jpg     # nested asset directories are allowed
` + "```" + `

## Front matter

` + "```" + `markdown
---
title: My First Post          # REQUIRED
date: 2025-01-15              # REQUIRED, YYYY-MM-DD or RFC 3339
tags:                         # OPTIONAL, list or comma separated string
  - Go
  - web
aliases:                      # OPTIONAL, extra names for [[wikilinks]]
  - first post
slug: custom-slug             # OPTIONAL, defaults to the directory name
excerpt: One line summary.    # OPTIONAL, derived from the body when absent
draft: false                  # OPTIONAL, drafts are never published
---
` + "```" + `

## Rules

1. Slugs are lowercase ASCII with single hyphens. Titles and tags are
   normalized the same way when matched.
2. Link other posts with ` + "`" + `[[Title]]` + "`" + `, ` + "`" + `[[slug]]` + "`" + `, an alias, or
   ` + "`" + `[[target|label]]` + "`" + `. Unresolved links render as broken-link markers.
3. Reference assets relative to the post directory: ` + "`" + `![x](diagram.png)` + "`" + `.
4. Assets larger than 10 MB are rejected. A post and its assets should stay
   under 25 MB in total.
5. Turning ` + "`" + `draft: true` + "`" + ` on a published post unpublishes it on the next sync.
`
