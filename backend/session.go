package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/sessions"
)

// ErrNoSuchKey is returned by Session.Get when the key is not present
// in the session.
var ErrNoSuchKey = errors.New("no such key in session")

// Session defines an interface for a session to keep track of user
// authenticated sessions.
type Session interface {
	// SetMaxAge sets the Max Age of the session, after which the session is
	// no longer valid.
	SetMaxAge(age time.Duration) error

	// Set sets a key value pair in the session.
	Set(key string, value any) error

	// Get retrieves the value for a given key in the session and stores it
	// in the destination, which must be a non-nil pointer. ErrNoSuchKey is
	// returned if the key is not present.
	Get(key string, dst any) error

	// Invalidate immediately invalidates the session and marks it as no
	// longer valid.
	Invalidate() error
}

// FiberSession implements the Session interface using a Fiber Cookie based
// storage method.
type FiberSession struct {
	cookie *fiber.Cookie              // Cookie used to store the session.
	values map[string]json.RawMessage // Map of the key value pairs to be encoded into the session.
}

// NewFiberSession creates a new FiberSession with the given id, decoding
// the key value pairs from the cookie value if non-empty.
func NewFiberSession(id, value string) (*FiberSession, error) {
	s := &FiberSession{cookie: &fiber.Cookie{Name: id}, values: make(map[string]json.RawMessage)}

	if value == "" {
		return s, nil
	}

	// Parse the value into the session value map.
	ckValue, err := url.QueryUnescape(value)
	if err != nil {
		return nil, fmt.Errorf("unable to unescape cookie value: %w", err)
	}
	err = json.Unmarshal([]byte(ckValue), &s.values)
	if err != nil {
		return nil, fmt.Errorf("unable to unmarshal value: %w", err)
	}

	return s, nil
}

// SetMaxAge implements the SetMaxAge method of the Session interface by setting
// the maximum age of the cookie.
func (s *FiberSession) SetMaxAge(age time.Duration) error {
	s.cookie.MaxAge = int(age.Seconds())
	return nil
}

// Set implements the Set method of the Session interface by encoding a query escaped
// map in JSON format to the cookie value.
func (s *FiberSession) Set(key string, value any) error {
	// Convert the value into a json RawMessage.
	v, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("unable to marshal value to json: %w", err)
	}
	s.values[key] = json.RawMessage(v)
	bytes, err := json.Marshal(s.values)
	s.cookie.Value = url.QueryEscape(string(bytes))
	return err
}

// Get implements the Get method of the Session interface by decoding the
// value stored in the session for the given key into the destination.
func (s *FiberSession) Get(key string, dst any) error {
	v, ok := s.values[key]
	if !ok {
		return ErrNoSuchKey
	}
	return json.Unmarshal(v, dst)
}

// Invalidate implements the Invalidate method of the Session interface by setting
// the Max Age of the cookie to -1.
func (s *FiberSession) Invalidate() error {
	s.cookie.MaxAge = -1
	return nil
}

// getCookie is a helper function which returns the fiber Cookie used to store the Fiber Session.
func (s *FiberSession) getCookie() *fiber.Cookie {
	return s.cookie
}

// GorillaSession implements the Session interface using Gorilla Sessions.
type GorillaSession struct {
	session *sessions.Session
}

func NewGorillaSession(session *sessions.Session) *GorillaSession {
	return &GorillaSession{session: session}
}

// SetMaxAge implements the SetMaxAge method of the Session interface by setting
// the maximum age of the cookie.
func (s *GorillaSession) SetMaxAge(maxAge time.Duration) error {
	s.session.Options.MaxAge = int(maxAge.Seconds())
	return nil
}

// Set implements the Set method of the Session interface by adding the key, value
// pair to the gorilla session's Values map.
func (s *GorillaSession) Set(key string, value any) error {
	s.session.Values[key] = value
	return nil
}

// Get implements the Get method of the Session interface by assigning the value
// stored in the session for the given key to the destination.
func (s *GorillaSession) Get(key string, dst any) error {
	v, ok := s.session.Values[key]
	if !ok {
		return ErrNoSuchKey
	}
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("dst must be a non-nil pointer, got %v", reflect.TypeOf(dst))
	}
	vv := reflect.ValueOf(v)
	if !vv.Type().AssignableTo(rv.Elem().Type()) {
		return fmt.Errorf("cannot assign session value of type %v to dst of type %v", vv.Type(), rv.Elem().Type())
	}
	rv.Elem().Set(vv)
	return nil
}

// Invalidate implements the Invalidate method of the Session interface by setting
// the Max Age of the cookie to -1.
func (s *GorillaSession) Invalidate() error {
	s.session.Options.MaxAge = -1
	return nil
}
