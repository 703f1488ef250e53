// Package graph resolves extension declarations into a rooted attachment tree.
//
// Resolve indexes declarations by id, links every declaration into the input
// slot it asks for on its parent, and sweeps the links from the root to find
// which nodes are connected. Anything the sweep does not reach is an orphan.
// Dangling targets and cycles are ordinary orphan states; only duplicate ids
// and a missing root are errors.
//
// A Graph and its Nodes are immutable once Resolve returns, so they can be
// read from several goroutines without locking. Render turns any node into the
// indented tag form used for logs and snapshots:
//
//	<b>
//	  x [
//	    <bx1 />
//	    <bx2 />
//	  ]
//	</b>
package graph
