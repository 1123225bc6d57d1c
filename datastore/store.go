/*
DESCRIPTION
  Datastore interfaces and common types.

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

// Package datastore abstracts an ordered key-value entity store with
// transactional writes. Two implementations are provided: CloudStore,
// which is backed by the Google Cloud Datastore, and FileStore, a
// local store used in standalone mode and during testing.
package datastore

import (
	"context"
	"errors"
	"sync"

	"cloud.google.com/go/datastore"
)

// Key is a datastore key. Keys encode to a websafe string form which
// is safe to pass across the system boundary; see (*Key).Encode and
// DecodeKey.
type Key = datastore.Key

// MultiError holds one error per key for batch operations.
type MultiError = datastore.MultiError

// Datastore errors. ErrNoSuchEntity is identical to the Google Cloud
// Datastore error so that either may be tested for.
var (
	ErrNoSuchEntity       = datastore.ErrNoSuchEntity
	ErrEntityExists       = errors.New("datastore: entity exists")
	ErrDecoding           = errors.New("datastore: decoding error")
	ErrWrongType          = errors.New("datastore: wrong type")
	ErrUnimplemented      = errors.New("datastore: unimplemented")
	ErrInvalidStoreKind   = errors.New("datastore: invalid store kind")
	ErrInvalidStoreID     = errors.New("datastore: invalid store ID")
	ErrInvalidFilter      = errors.New("datastore: invalid filter")
	ErrInvalidOperator    = errors.New("datastore: invalid operator")
	ErrUnregisteredEntity = errors.New("datastore: unregistered entity")
)

// Entity defines the common interface for our datastore entities.
// Entities serialize to tab-separated values for file storage.
type Entity interface {
	Encode() []byte               // Encode an entity into bytes.
	Decode([]byte) error          // Decode an entity from bytes.
	Copy(Entity) (Entity, error)  // Copy an entity to dst, or return a copy of the entity when dst is nil.
	GetCache() Cache              // Returns the entity cache, or nil for no caching.
}

// NewEntity defines a function type for constructing entities.
type NewEntity func() Entity

var (
	entitiesMutex sync.RWMutex
	entities      = map[string]NewEntity{}
)

// RegisterEntity registers a new kind of entity and its constructor.
func RegisterEntity(kind string, construct NewEntity) {
	entitiesMutex.Lock()
	entities[kind] = construct
	entitiesMutex.Unlock()
}

// newEntity returns a new entity of the given kind, or
// ErrUnregisteredEntity for kinds that have not been registered.
func newEntity(kind string) (Entity, error) {
	entitiesMutex.RLock()
	construct, ok := entities[kind]
	entitiesMutex.RUnlock()
	if !ok {
		return nil, ErrUnregisteredEntity
	}
	return construct(), nil
}

// GetCache returns the cache associated with an entity kind, or nil
// for unregistered kinds and kinds without caching.
func GetCache(kind string) Cache {
	entitiesMutex.RLock()
	construct, ok := entities[kind]
	entitiesMutex.RUnlock()
	if !ok {
		return nil
	}
	return construct().GetCache()
}

// Query defines the query interface, which is a subset of the Google
// Cloud Datastore query interface.
type Query interface {
	// Filter filters a query with the given filter string, e.g.,
	// "Speaker =", and value. A nil value leaves the query unchanged.
	Filter(filterStr string, value interface{}) error

	// FilterField filters a query by the given field name, operator
	// and value, e.g., "SeatsAvailable", "<=", 5.
	FilterField(fieldName, operator string, value interface{}) error

	// Order orders the results of a query by the given field name,
	// optionally prefixed with a minus sign for descending order.
	Order(fieldName string)

	// Limit limits the number of results returned.
	Limit(limit int)

	// Offset sets the number of keys to skip before returning results.
	Offset(offset int)
}

// Store defines the datastore interface. All operations take a
// context for cancellation.
type Store interface {
	IDKey(kind string, id int64) *Key                                    // Returns an ID key.
	NameKey(kind, name string) *Key                                      // Returns a name key.
	IncompleteKey(kind string) *Key                                      // Returns an incomplete key, completed upon Put.
	NewQuery(kind string, keysOnly bool, keyParts ...string) Query       // Returns a new query.
	Get(ctx context.Context, key *Key, dst Entity) error                 // Gets a single entity by key.
	GetMulti(ctx context.Context, keys []*Key, dst []Entity) error       // Gets multiple entities by key.
	GetAll(ctx context.Context, q Query, dst interface{}) ([]*Key, error) // Runs a query and returns all matching entities.
	Create(ctx context.Context, key *Key, src Entity) error              // Creates a new entity, erring if the key exists.
	Put(ctx context.Context, key *Key, src Entity) (*Key, error)         // Creates or updates an entity.
	Update(ctx context.Context, key *Key, fn func(Entity), dst Entity) error // Transactionally updates a single entity.

	// UpdatePair transactionally applies fn to the pair of entities
	// identified by key1 and key2, re-reading both before commit. An
	// error returned by fn aborts the transaction without writing.
	UpdatePair(ctx context.Context, key1 *Key, dst1 Entity, key2 *Key, dst2 Entity, fn func(Entity, Entity) error) error

	Delete(ctx context.Context, key *Key) error          // Deletes a single entity by key.
	DeleteMulti(ctx context.Context, keys []*Key) error  // Deletes multiple entities by key.
}

// NewStore returns a new Store. The kind is either "cloud" for the
// Google Cloud Datastore or "file" for a file-based store. The ID is
// the project ID of the requested datastore. For CloudStore, url
// optionally locates credentials. For FileStore, url is the optional
// directory used to persist entities between runs.
func NewStore(ctx context.Context, kind, id, url string) (Store, error) {
	switch kind {
	case "cloud":
		return newCloudStore(ctx, id, url)
	case "file":
		return newFileStore(ctx, id, url)
	default:
		return nil, ErrInvalidStoreKind
	}
}

// DecodeKey decodes a key from its websafe string form.
func DecodeKey(encoded string) (*Key, error) {
	return datastore.DecodeKey(encoded)
}
