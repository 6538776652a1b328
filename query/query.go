/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package query models a subgraph query: an unordered set of edge, time and
vertex expressions collected via AddEdge/AddTimeConstraint/
AddVertexConstraint and then compiled, via Finalize, into a connected slot
order a GraphStore can advance partial matches against.
*/
package query

import (
	"fmt"

	"github.com/flowmatch/graphstream/feature"
)

/*
TimeField selects which endpoint of an edge a TimeExpr constrains.
*/
type TimeField int

const (
	FieldStart TimeField = iota
	FieldEnd
)

/*
TimeOp is the comparison a TimeExpr applies between an edge's time field
and a reference value, which may itself be another slot's bound time
(Ref != "") or a literal (Ref == "").
*/
type TimeOp int

const (
	OpEqual TimeOp = iota
	OpGreaterThan
	OpLessThan
)

/*
TimeExpr constrains one time field of one edge slot, either against a
literal Value or against the same field of an earlier slot named Ref -
the mechanism behind "strictly increasing" chains like the triangle
scenario.
*/
type TimeExpr struct {
	Slot  string
	Field TimeField
	Op    TimeOp
	Value float64
	Ref   string
}

/*
VertexExpr constrains a query variable's membership in a named feature.
*/
type VertexExpr struct {
	Var     string
	Feature string
	Want    feature.Membership
}

/*
edgeExpr is the raw, unordered edge shape as added by AddEdge.
*/
type edgeExpr struct {
	slot     string
	from, to string
}

/*
Slot is one edge position in the finalized matching plan: From/To name
the query variables bound to the edge endpoints, FromBound/ToBound record
whether that variable was already bound by an earlier slot (and must
therefore match, rather than introduce, a vertex).
*/
type Slot struct {
	Name               string
	From, To           string
	FromBound, ToBound bool
	Times              []TimeExpr
}

/*
Query is built up via the Add* methods and made usable for registration
by a single call to Finalize.
*/
type Query struct {
	ID     uint64
	Window float64

	edges   []edgeExpr
	times   []TimeExpr
	vertex  []VertexExpr
	byVar   map[string]VertexExpr

	Slots             []Slot
	VertexConstraints map[string]VertexExpr

	finalized bool
}

/*
New creates an unfinalized query. window bounds how long a partial match
may live (in the same time units as edge.Edge.TStart/TEnd) before it is
expired.
*/
func New(id uint64, window float64) *Query {
	return &Query{
		ID:     id,
		Window: window,
		byVar:  make(map[string]VertexExpr),
	}
}

/*
AddEdge adds an edge expression: a directed slot named name from variable
from to variable to. Order of AddEdge calls does not matter; Finalize
determines the actual matching order.
*/
func (q *Query) AddEdge(name, from, to string) *Query {
	q.edges = append(q.edges, edgeExpr{slot: name, from: from, to: to})
	return q
}

/*
AddTimeConstraint adds a time constraint on a named edge slot.
*/
func (q *Query) AddTimeConstraint(slot string, field TimeField, op TimeOp, value float64) *Query {
	q.times = append(q.times, TimeExpr{Slot: slot, Field: field, Op: op, Value: value})
	return q
}

/*
AddRelativeTimeConstraint adds a time constraint on a named edge slot
relative to the matching field of an earlier slot, e.g. "start(e2) >
start(e1)".
*/
func (q *Query) AddRelativeTimeConstraint(slot string, field TimeField, op TimeOp, ref string) *Query {
	q.times = append(q.times, TimeExpr{Slot: slot, Field: field, Op: op, Ref: ref})
	return q
}

/*
AddVertexConstraint adds a feature-membership constraint on a query
variable.
*/
func (q *Query) AddVertexConstraint(v, featureID string, want feature.Membership) *Query {
	expr := VertexExpr{Var: v, Feature: featureID, Want: want}
	q.vertex = append(q.vertex, expr)
	q.byVar[v] = expr
	return q
}

/*
Error is returned by Finalize when a query cannot be compiled.
*/
type Error struct {
	Kind string
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("query error (%s): %s", e.Kind, e.Msg)
}

/*
ErrNotFinalized is returned by a GraphStore when RegisterQuery is called
with a query that has not been successfully finalized.
*/
var ErrNotFinalized = &Error{Kind: "NotFinalized", Msg: "query has not been finalized"}

/*
Finalize computes the connected matching order: the first slot is the
first edge added, and every subsequent slot must share a variable with
some earlier slot. A query whose edges do not form a single connected
component fails to finalize, as does a query with no edges at all.
*/
func (q *Query) Finalize() error {
	if len(q.edges) == 0 {
		return &Error{Kind: "Empty", Msg: "query has no edge expressions"}
	}

	timesBySlot := make(map[string][]TimeExpr)
	for _, t := range q.times {
		timesBySlot[t.Slot] = append(timesBySlot[t.Slot], t)
	}

	remaining := append([]edgeExpr(nil), q.edges...)
	bound := make(map[string]bool)

	ordered := make([]Slot, 0, len(q.edges))

	// Seed with the first edge added; it introduces both its variables.
	first := remaining[0]
	remaining = remaining[1:]
	bound[first.from] = true
	bound[first.to] = true
	ordered = append(ordered, Slot{
		Name: first.slot, From: first.from, To: first.to,
		FromBound: false, ToBound: false,
		Times: timesBySlot[first.slot],
	})

	for len(remaining) > 0 {
		progressed := false

		for i := 0; i < len(remaining); i++ {
			e := remaining[i]
			fromBound, toBound := bound[e.from], bound[e.to]

			if !fromBound && !toBound {
				continue
			}

			ordered = append(ordered, Slot{
				Name: e.slot, From: e.from, To: e.to,
				FromBound: fromBound, ToBound: toBound,
				Times: timesBySlot[e.slot],
			})

			bound[e.from] = true
			bound[e.to] = true

			remaining = append(remaining[:i], remaining[i+1:]...)
			progressed = true
			break
		}

		if !progressed {
			return &Error{Kind: "Disconnected", Msg: "query edges do not form one connected component"}
		}
	}

	q.Slots = ordered
	q.VertexConstraints = q.byVar
	q.finalized = true

	return nil
}

/*
Finalized reports whether Finalize has succeeded on this query.
*/
func (q *Query) Finalized() bool {
	return q.finalized
}
