/*
Package vcs implements version control over the tracked items of a project.

The state of every tracked item (a track, the timeline, the project info)
decomposes into a fixed, ordered list of deltas, each covering one aspect of
the item: its path, its colour, its notes and so on. A delta is a Delta
descriptor (type and a human readable description) plus its DeltaData
payload, which is either a Scalar or an ordered list of Items.

Diffing two states of an item is done delta by delta, never across delta
types: scalar deltas are either equal or replaced, and list deltas are
compared item by item (matched by id) into added, removed and changed lists.
The Layout of a logic type describes its deltas and implements the DiffLogic
for it. A Schema maps logic types to layouts.

Revisions store only the changed deltas of the items they touch. The Head
replays revisions from the root to rebuild a Snapshot of full item states,
which the live items are diffed against (Status, Commit) or reset to
(Checkout, ResetChanges).
*/
package vcs
