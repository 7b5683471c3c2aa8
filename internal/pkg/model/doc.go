// Package model defines the shared data model of the retrieval and
// extraction core: source items, chunks, embeddings, graph entities and
// the query-side plan and context block types.
//
// Types here cross component boundaries; free-form metadata is typed as
// map[string]any and only serialized at persistence boundaries.
package model
