// Package extension defines the declaration record every extension source
// produces: an identifier, an optional attach point on a parent extension, and
// an opaque payload that the graph resolver carries without inspecting.
package extension
