/*
DESCRIPTION
  Conference query compilation from user-supplied filter criteria.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"context"
	"fmt"
	"strconv"

	"github.com/openconf/cloud/datastore"
)

// Filter is a single user-supplied query criterion: a logical field
// name, a comparison operator and a textual value.
type Filter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// Lookup tables from logical filter names to conference fields and
// from operator names to datastore operators. Unknown names are
// rejected; filters are never applied partially.
var (
	filterFields = map[string]string{
		"CITY":          "City",
		"TOPIC":         "Topics",
		"MONTH":         "Month",
		"MAX_ATTENDEES": "MaxAttendees",
	}

	filterOperators = map[string]string{
		"EQ":   "=",
		"GT":   ">",
		"GTEQ": ">=",
		"LT":   "<",
		"LTEQ": "<=",
		"NE":   "!=",
	}

	// Fields whose textual values are coerced to integers.
	numericFilterFields = map[string]bool{
		"Month":        true,
		"MaxAttendees": true,
	}
)

// compiledFilter is a resolved criterion ready to apply to a query.
type compiledFilter struct {
	field string
	op    string
	value interface{}
}

// compileFilters resolves and validates the criteria, returning the
// compiled filters and the single field carrying an inequality
// operator, if any. The underlying store only supports inequalities
// on one field per query, so a second inequality on a different field
// fails with ErrMultipleInequalityFields.
func compileFilters(filters []Filter) ([]compiledFilter, string, error) {
	var compiled []compiledFilter
	var inequality string
	for _, f := range filters {
		field, ok := filterFields[f.Field]
		if !ok {
			return nil, "", fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, f.Field)
		}
		op, ok := filterOperators[f.Operator]
		if !ok {
			return nil, "", fmt.Errorf("%w: unknown operator %q", ErrInvalidFilter, f.Operator)
		}

		var value interface{} = f.Value
		if numericFilterFields[field] {
			n, err := strconv.Atoi(f.Value)
			if err != nil {
				return nil, "", fmt.Errorf("%w: %s value %q is not an integer", ErrInvalidFilter, f.Field, f.Value)
			}
			value = n
		}

		if op != "=" {
			if inequality != "" && inequality != field {
				return nil, "", ErrMultipleInequalityFields
			}
			inequality = field
		}
		compiled = append(compiled, compiledFilter{field, op, value})
	}
	return compiled, inequality, nil
}

// CompileConferenceQuery compiles user-supplied criteria into a
// conference query. The query sorts first by the inequality field,
// if any, then by name for determinism, and applies equality filters
// in the order supplied.
func CompileConferenceQuery(store datastore.Store, filters []Filter) (datastore.Query, error) {
	compiled, inequality, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}
	q := store.NewQuery(typeConference, false)
	if inequality != "" {
		q.Order(inequality)
	}
	q.Order("Name")
	for _, c := range compiled {
		err = q.FilterField(c.field, c.op, c.value)
		if err != nil {
			return nil, err
		}
	}
	return q, nil
}

// QueryConferences compiles the criteria and returns the matching
// conferences with their keys.
func QueryConferences(ctx context.Context, store datastore.Store, filters []Filter) ([]Conference, []*datastore.Key, error) {
	q, err := CompileConferenceQuery(store, filters)
	if err != nil {
		return nil, nil, err
	}
	var confs []Conference
	keys, err := store.GetAll(ctx, q, &confs)
	return confs, keys, err
}
