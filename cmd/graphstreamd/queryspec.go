/*
 * GraphStream
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/flowmatch/graphstream/feature"
	"github.com/flowmatch/graphstream/query"
)

/*
edgeSpec, timeSpec and vertexSpec mirror query.Query's Add* calls so a
query can be described as JSON rather than built in Go code, parsed the
way cli/eliasdb.go parses its own subcommand arguments - something has to
turn a file on disk into the calls query.Query's builder methods expect.
*/
type querySpec struct {
	ID     uint64       `json:"id"`
	Window float64      `json:"window"`
	Edges  []edgeSpec   `json:"edges"`
	Times  []timeSpec   `json:"times,omitempty"`
	Vertex []vertexSpec `json:"vertex,omitempty"`
}

type edgeSpec struct {
	Slot string `json:"slot"`
	From string `json:"from"`
	To   string `json:"to"`
}

type timeSpec struct {
	Slot  string  `json:"slot"`
	Field string  `json:"field"` // "start" or "end"
	Op    string  `json:"op"`    // "eq", "gt", "lt"
	Value float64 `json:"value,omitempty"`
	Ref   string  `json:"ref,omitempty"`
}

type vertexSpec struct {
	Var     string `json:"var"`
	Feature string `json:"feature"`
	Want    string `json:"want"` // "in" or "notin"
}

/*
loadQueries reads a JSON array of querySpec from path and compiles each
one into a finalized *query.Query. A query that fails to parse or
finalize is reported and skipped rather than aborting the whole file,
since one malformed definition should not take down a node that would
otherwise run fine on the rest.
*/
func loadQueries(path string) ([]*query.Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var specs []querySpec
	if err := json.NewDecoder(f).Decode(&specs); err != nil {
		return nil, err
	}

	var queries []*query.Query

nextSpec:
	for _, s := range specs {
		q := query.New(s.ID, s.Window)

		for _, e := range s.Edges {
			q.AddEdge(e.Slot, e.From, e.To)
		}

		for _, t := range s.Times {
			field, err := parseField(t.Field)
			if err != nil {
				fmt.Fprintf(os.Stderr, "query %d: %v\n", s.ID, err)
				continue nextSpec
			}

			op, err := parseOp(t.Op)
			if err != nil {
				fmt.Fprintf(os.Stderr, "query %d: %v\n", s.ID, err)
				continue nextSpec
			}

			if t.Ref != "" {
				q.AddRelativeTimeConstraint(t.Slot, field, op, t.Ref)
			} else {
				q.AddTimeConstraint(t.Slot, field, op, t.Value)
			}
		}

		for _, v := range s.Vertex {
			want, err := parseWant(v.Want)
			if err != nil {
				fmt.Fprintf(os.Stderr, "query %d: %v\n", s.ID, err)
				continue nextSpec
			}
			q.AddVertexConstraint(v.Var, v.Feature, want)
		}

		if err := q.Finalize(); err != nil {
			fmt.Fprintf(os.Stderr, "query %d: %v\n", s.ID, err)
			continue
		}

		queries = append(queries, q)
	}

	return queries, nil
}

func parseField(s string) (query.TimeField, error) {
	switch s {
	case "start":
		return query.FieldStart, nil
	case "end":
		return query.FieldEnd, nil
	}
	return 0, fmt.Errorf("unknown time field %q", s)
}

func parseOp(s string) (query.TimeOp, error) {
	switch s {
	case "eq":
		return query.OpEqual, nil
	case "gt":
		return query.OpGreaterThan, nil
	case "lt":
		return query.OpLessThan, nil
	}
	return 0, fmt.Errorf("unknown time operator %q", s)
}

func parseWant(s string) (feature.Membership, error) {
	switch s {
	case "in":
		return feature.In, nil
	case "notin":
		return feature.NotIn, nil
	}
	return 0, fmt.Errorf("unknown membership %q", s)
}
