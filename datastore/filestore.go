/*
DESCRIPTION
  File-based datastore implementation, used in standalone mode and
  during testing.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package datastore

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/datastore"
)

// FileStore implements Store for file-based storage. Entities are
// held in memory in their encoded form, keyed by kind and websafe
// key, and optionally persisted beneath a directory, one file per
// entity. All operations are serialized by a single mutex, which
// gives FileStore the same atomicity guarantees for Update and
// UpdatePair as the cloud implementation.
type FileStore struct {
	mutex  sync.Mutex
	id     string
	dir    string
	data   map[string]map[string][]byte // Encoded entities by kind and websafe key.
	loaded map[string]bool              // Kinds loaded from the directory.
}

// newFileStore returns a new FileStore. The dir, when non-empty, is
// the directory used to persist entities between runs; it is created
// if it does not exist.
func newFileStore(ctx context.Context, id, dir string) (*FileStore, error) {
	s := &FileStore{
		id:     id,
		dir:    dir,
		data:   make(map[string]map[string][]byte),
		loaded: make(map[string]bool),
	}
	if dir != "" {
		err := os.MkdirAll(dir, 0777)
		if err != nil {
			return nil, err
		}
	}
	return s, nil
}

// IDKey returns an ID key given a kind and an int64 ID.
func (s *FileStore) IDKey(kind string, id int64) *Key {
	return datastore.IDKey(kind, id, nil)
}

// NameKey returns a name key given a kind and a (string) name.
func (s *FileStore) NameKey(kind, name string) *Key {
	return datastore.NameKey(kind, name, nil)
}

// IncompleteKey returns an incomplete key given a kind. The key is
// completed with a random ID upon Put.
func (s *FileStore) IncompleteKey(kind string) *Key {
	return datastore.IncompleteKey(kind, nil)
}

// NewQuery returns a new FileQuery. The keyParts are accepted for
// interface compatibility but ignored; FileStore evaluates filters
// against entity fields directly.
func (s *FileStore) NewQuery(kind string, keysOnly bool, keyParts ...string) Query {
	return &FileQuery{kind: kind, keysOnly: keysOnly}
}

// loadKind loads persisted entities of the given kind. It must be
// called with the mutex held.
func (s *FileStore) loadKind(kind string) error {
	if s.loaded[kind] {
		return nil
	}
	s.loaded[kind] = true
	if s.data[kind] == nil {
		s.data[kind] = make(map[string][]byte)
	}
	if s.dir == "" {
		return nil
	}
	dir := filepath.Join(s.dir, kind)
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, f := range files {
		b, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			return err
		}
		s.data[kind][f.Name()] = b
	}
	return nil
}

// writeFile persists a single encoded entity, when persistence is enabled.
func (s *FileStore) writeFile(kind, name string, b []byte) error {
	if s.dir == "" {
		return nil
	}
	dir := filepath.Join(s.dir, kind)
	err := os.MkdirAll(dir, 0777)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), b, 0666)
}

// removeFile removes a persisted entity, when persistence is enabled.
func (s *FileStore) removeFile(kind, name string) {
	if s.dir == "" {
		return
	}
	os.Remove(filepath.Join(s.dir, kind, name))
}

// get returns the encoded entity for the given key, or
// ErrNoSuchEntity. It must be called with the mutex held.
func (s *FileStore) get(key *Key) ([]byte, error) {
	err := s.loadKind(key.Kind)
	if err != nil {
		return nil, err
	}
	b, ok := s.data[key.Kind][key.Encode()]
	if !ok {
		return nil, ErrNoSuchEntity
	}
	return b, nil
}

// put stores the encoded entity for the given key. It must be called
// with the mutex held.
func (s *FileStore) put(key *Key, src Entity) error {
	err := s.loadKind(key.Kind)
	if err != nil {
		return err
	}
	b := src.Encode()
	name := key.Encode()
	s.data[key.Kind][name] = b
	return s.writeFile(key.Kind, name, b)
}

func (s *FileStore) Get(ctx context.Context, key *Key, dst Entity) error {
	if cache := dst.GetCache(); cache != nil {
		err := cache.Get(key, dst)
		if err == nil {
			return nil
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, err := s.get(key)
	if err != nil {
		return err
	}
	return dst.Decode(b)
}

// GetMulti gets the entities for the given keys, filling dst in key
// order. Missing entities are reported via a MultiError holding
// ErrNoSuchEntity at the corresponding index.
func (s *FileStore) GetMulti(ctx context.Context, keys []*Key, dst []Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	merr := make(MultiError, len(keys))
	failed := false
	for i, key := range keys {
		b, err := s.get(key)
		if err == nil {
			err = dst[i].Decode(b)
		}
		if err != nil {
			merr[i] = err
			failed = true
		}
	}
	if failed {
		return merr
	}
	return nil
}

func (s *FileStore) GetAll(ctx context.Context, query Query, dst interface{}) ([]*Key, error) {
	q, ok := query.(*FileQuery)
	if !ok {
		return nil, ErrInvalidFilter
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	err := s.loadKind(q.kind)
	if err != nil {
		return nil, err
	}

	// Decode and filter candidate entities.
	type match struct {
		key *Key
		ent Entity
	}
	var matches []match
	for name, b := range s.data[q.kind] {
		key, err := DecodeKey(name)
		if err != nil {
			return nil, err
		}
		ent, err := newEntity(q.kind)
		if err != nil {
			return nil, err
		}
		err = ent.Decode(b)
		if err != nil {
			return nil, err
		}
		ok, err := q.matches(ent)
		if err != nil {
			return nil, err
		}
		if ok {
			matches = append(matches, match{key, ent})
		}
	}

	// Sort by the order terms, falling back to websafe key for
	// determinism when no order is given.
	sort.SliceStable(matches, func(i, j int) bool {
		for _, o := range q.orders {
			field, desc := o, false
			if strings.HasPrefix(o, "-") {
				field, desc = o[1:], true
			}
			c, err := compareField(matches[i].ent, matches[j].ent, field)
			if err != nil || c == 0 {
				continue
			}
			if desc {
				return c > 0
			}
			return c < 0
		}
		return matches[i].key.Encode() < matches[j].key.Encode()
	})

	if q.offset > 0 {
		if q.offset > len(matches) {
			matches = nil
		} else {
			matches = matches[q.offset:]
		}
	}
	if q.limit > 0 && len(matches) > q.limit {
		matches = matches[:q.limit]
	}

	keys := make([]*Key, len(matches))
	for i, m := range matches {
		keys[i] = m.key
	}
	if q.keysOnly || dst == nil {
		return keys, nil
	}

	// Append the matched entities to the destination slice, which is
	// either a slice of structs or a slice of pointers to structs.
	dv := reflect.ValueOf(dst)
	if dv.Kind() != reflect.Ptr || dv.Elem().Kind() != reflect.Slice {
		return nil, ErrWrongType
	}
	sv := dv.Elem()
	elem := sv.Type().Elem()
	for _, m := range matches {
		ev := reflect.ValueOf(m.ent)
		switch elem.Kind() {
		case reflect.Ptr:
			sv = reflect.Append(sv, ev)
		default:
			sv = reflect.Append(sv, ev.Elem())
		}
	}
	dv.Elem().Set(sv)
	return keys, nil
}

// completeKey returns key, or a copy completed with a random ID if
// key is incomplete.
func (s *FileStore) completeKey(key *Key) *Key {
	if !key.Incomplete() {
		return key
	}
	for {
		id := rand.Int63()
		if id == 0 {
			continue
		}
		k := datastore.IDKey(key.Kind, id, nil)
		if _, ok := s.data[key.Kind][k.Encode()]; !ok {
			return k
		}
	}
}

func (s *FileStore) Create(ctx context.Context, key *Key, src Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	_, err := s.get(key)
	if err == nil {
		return ErrEntityExists
	}
	if err != ErrNoSuchEntity {
		return err
	}
	return s.put(key, src)
}

func (s *FileStore) Put(ctx context.Context, key *Key, src Entity) (*Key, error) {
	s.mutex.Lock()
	err := s.loadKind(key.Kind)
	if err != nil {
		s.mutex.Unlock()
		return nil, err
	}
	key = s.completeKey(key)
	err = s.put(key, src)
	s.mutex.Unlock()
	if err != nil {
		return nil, err
	}
	if cache := src.GetCache(); cache != nil {
		cache.Set(key, src)
	}
	return key, nil
}

func (s *FileStore) Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b, err := s.get(key)
	if err != nil {
		return err
	}
	err = dst.Decode(b)
	if err != nil {
		return err
	}
	fn(dst)
	err = s.put(key, dst)
	if cache := dst.GetCache(); cache != nil {
		cache.Delete(key)
	}
	return err
}

// UpdatePair transactionally applies fn to the two entities
// identified by key1 and key2. The store mutex is held for the
// duration, so fn sees current state and no concurrent writer can
// interleave. An error from fn aborts the update and nothing is
// written.
func (s *FileStore) UpdatePair(ctx context.Context, key1 *Key, dst1 Entity, key2 *Key, dst2 Entity, fn func(Entity, Entity) error) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	b1, err := s.get(key1)
	if err != nil {
		return err
	}
	b2, err := s.get(key2)
	if err != nil {
		return err
	}
	err = dst1.Decode(b1)
	if err != nil {
		return err
	}
	err = dst2.Decode(b2)
	if err != nil {
		return err
	}
	err = fn(dst1, dst2)
	if err != nil {
		return err
	}
	err = s.put(key1, dst1)
	if err != nil {
		return err
	}
	err = s.put(key2, dst2)
	if err != nil {
		return err
	}
	if cache := dst1.GetCache(); cache != nil {
		cache.Delete(key1)
	}
	if cache := dst2.GetCache(); cache != nil {
		cache.Delete(key2)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, key *Key) error {
	return s.DeleteMulti(ctx, []*Key{key})
}

func (s *FileStore) DeleteMulti(ctx context.Context, keys []*Key) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, key := range keys {
		err := s.loadKind(key.Kind)
		if err != nil {
			return err
		}
		name := key.Encode()
		delete(s.data[key.Kind], name)
		s.removeFile(key.Kind, name)
		if cache := GetCache(key.Kind); cache != nil {
			cache.Delete(key)
		}
	}
	return nil
}

// FileQuery implements Query for FileStore. Filters are evaluated
// against entity fields by reflection and order terms are applied in
// the order given.
type FileQuery struct {
	kind     string
	keysOnly bool
	filters  []fileFilter
	orders   []string
	limit    int
	offset   int
}

type fileFilter struct {
	field string
	op    string
	value interface{}
}

func (q *FileQuery) Filter(filterStr string, value interface{}) error {
	if value == nil {
		return nil
	}
	sep := strings.IndexByte(filterStr, ' ')
	if sep == -1 {
		return ErrInvalidFilter
	}
	return q.FilterField(filterStr[:sep], strings.TrimSpace(filterStr[sep+1:]), value)
}

// FilterField filters a query.
func (q *FileQuery) FilterField(fieldName, operator string, value interface{}) error {
	if value == nil {
		return nil
	}
	switch operator {
	case "=", ">", ">=", "<", "<=", "!=":
	default:
		return ErrInvalidOperator
	}
	q.filters = append(q.filters, fileFilter{fieldName, operator, value})
	return nil
}

func (q *FileQuery) Order(fieldName string) {
	q.orders = append(q.orders, fieldName)
}

// Limit limits the number of results returned.
func (q *FileQuery) Limit(limit int) {
	q.limit = limit
}

// Offset sets the number of keys to skip before returning results.
func (q *FileQuery) Offset(offset int) {
	q.offset = offset
}

// matches reports whether the entity satisfies every filter.
func (q *FileQuery) matches(ent Entity) (bool, error) {
	for _, f := range q.filters {
		ok, err := matchField(ent, f.field, f.op, f.value)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// fieldValue returns the value of the named entity field.
func fieldValue(ent Entity, field string) (reflect.Value, error) {
	v := reflect.ValueOf(ent).Elem().FieldByName(field)
	if !v.IsValid() {
		return v, ErrInvalidFilter
	}
	return v, nil
}

// matchField reports whether the named field of the entity satisfies
// the given operator and value. Equality on a string-slice field has
// list-membership semantics, consistent with datastore list
// properties.
func matchField(ent Entity, field, op string, value interface{}) (bool, error) {
	v, err := fieldValue(ent, field)
	if err != nil {
		return false, err
	}

	if v.Kind() == reflect.Slice && v.Type().Elem().Kind() == reflect.String {
		s, ok := value.(string)
		if !ok || (op != "=" && op != "!=") {
			return false, ErrInvalidOperator
		}
		found := false
		for i := 0; i < v.Len(); i++ {
			if v.Index(i).String() == s {
				found = true
				break
			}
		}
		if op == "!=" {
			return !found, nil
		}
		return found, nil
	}

	c, err := compareValue(v, value)
	if err != nil {
		return false, err
	}
	switch op {
	case "=":
		return c == 0, nil
	case "!=":
		return c != 0, nil
	case ">":
		return c > 0, nil
	case ">=":
		return c >= 0, nil
	case "<":
		return c < 0, nil
	case "<=":
		return c <= 0, nil
	}
	return false, ErrInvalidOperator
}

// compareValue compares a reflected entity field with a filter value,
// returning -1, 0 or 1.
func compareValue(v reflect.Value, value interface{}) (int, error) {
	switch v.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return 0, ErrInvalidFilter
		}
		return strings.Compare(v.String(), s), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		switch t := value.(type) {
		case int:
			n = int64(t)
		case int64:
			n = t
		default:
			return 0, ErrInvalidFilter
		}
		return compareInt64(v.Int(), n), nil

	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return 0, ErrInvalidFilter
		}
		if v.Bool() == b {
			return 0, nil
		}
		return 1, nil

	case reflect.Struct:
		t1, ok := v.Interface().(time.Time)
		if !ok {
			return 0, ErrInvalidFilter
		}
		t2, ok := value.(time.Time)
		if !ok {
			return 0, ErrInvalidFilter
		}
		return compareInt64(t1.UnixNano(), t2.UnixNano()), nil
	}
	return 0, ErrInvalidFilter
}

// compareField compares the named field of two entities, returning
// -1, 0 or 1.
func compareField(e1, e2 Entity, field string) (int, error) {
	v1, err := fieldValue(e1, field)
	if err != nil {
		return 0, err
	}
	v2, err := fieldValue(e2, field)
	if err != nil {
		return 0, err
	}
	switch v1.Kind() {
	case reflect.String:
		return strings.Compare(v1.String(), v2.String()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return compareInt64(v1.Int(), v2.Int()), nil
	case reflect.Struct:
		t1, ok1 := v1.Interface().(time.Time)
		t2, ok2 := v2.Interface().(time.Time)
		if !ok1 || !ok2 {
			return 0, ErrInvalidFilter
		}
		return compareInt64(t1.UnixNano(), t2.UnixNano()), nil
	}
	return 0, ErrInvalidFilter
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
