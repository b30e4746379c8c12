/*
Package montage allows to build pull-based media graphs.

Concept

A graph is built from nodes. Every node serves frames for positions of its
own timeline:

    Input - the origin of frames, has no slots;
    Filter - pulls frames from nodes connected to its slots and transforms them;
    Store - the destination of frames.

A store, or any other caller, seeks the tip of the graph and fetches a frame.
Filters recursively seek and fetch their slots on the caller's goroutine.
Nothing runs in background unless a threader is put in front of a sub-graph.

Frames

Frame carries an optional image, optional audio, an optional encoded packet
and attributes. Payloads are shared between duplicates and are read-only
once shared:

    shallow := frame.Shallow()     // payloads frozen, attributes copied
    img := shallow.MutableImage()  // image cloned before write

No data at a position is not an error: an empty frame stamped with the
requested position is returned instead.

Nodes

Nodes are created by factories registered with a tag. Package input
registers its nodes on import:

    import _ "github.com/dudk/montage/input"

    n := montage.Create("colour:ff0000")

Base provides default behaviour for slots, seeking and syncing, concrete
nodes embed it and implement Fetch.
*/
package montage
