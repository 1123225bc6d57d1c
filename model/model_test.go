/*
DESCRIPTION
  model tests.

LICENSE
  Copyright (C) 2026 the OpenConf project.

  This file is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  This is distributed in the hope that it will be useful, but WITHOUT
  ANY WARRANTY; without even the implied warranty of MERCHANTABILITY
  or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU General Public
  License for more details.

  You should have received a copy of the GNU General Public License in
  gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package model

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/openconf/cloud/datastore"
)

const (
	testUserID     = "118439263243928342059"
	testUserID2    = "103287450184850930211"
	testUserEmail  = "organizer@openconf.org"
	testUserEmail2 = "attendee@openconf.org"
	testConfName   = "GopherCon Adelaide"
	testConfCity   = "Adelaide"
	testProfileEnc = "118439263243928342059\torganizer\torganizer@openconf.org\t\t\t0"
	testSessionEnc = "Keynote\tck\t\tRob\t60\tkeynote\t0\t540"
)

var testTime = time.Unix(0, 0).UTC()

func newTestStore(t *testing.T) datastore.Store {
	RegisterEntities()
	store, err := datastore.NewStore(context.Background(), "file", "openconf", "")
	if err != nil {
		t.Fatalf("datastore.NewStore(file, openconf) failed with error: %v", err)
	}
	return store
}

// TestEncoding tests entity encoding and decoding.
func TestEncoding(t *testing.T) {
	p := Profile{
		UserID:      testUserID,
		DisplayName: "organizer",
		MainEmail:   testUserEmail,
		Created:     testTime,
	}
	enc := p.Encode()
	if string(enc) != testProfileEnc {
		t.Errorf("Profile.Encode returned %s, expected %s", enc, testProfileEnc)
	}
	var p2 Profile
	err := p2.Decode(enc)
	if err != nil {
		t.Errorf("Profile.Decode failed with error: %v", err)
	}
	if !bytes.Equal(p2.Encode(), enc) {
		t.Errorf("Profile did not survive a decode/encode round trip")
	}

	s := Session{
		Name:          "Keynote",
		ConfKey:       "ck",
		Speaker:       "Rob",
		Duration:      60,
		TypeOfSession: "keynote",
		Date:          testTime,
		StartTime:     9 * 60,
	}
	enc = s.Encode()
	if string(enc) != testSessionEnc {
		t.Errorf("Session.Encode returned %s, expected %s", enc, testSessionEnc)
	}
	var s2 Session
	err = s2.Decode(enc)
	if err != nil {
		t.Errorf("Session.Decode failed with error: %v", err)
	}
	if !bytes.Equal(s2.Encode(), enc) {
		t.Errorf("Session did not survive a decode/encode round trip")
	}

	c := Conference{
		Name:         testConfName,
		Organizer:    testUserID,
		City:         testConfCity,
		Topics:       []string{"Go", "Cloud"},
		StartDate:    testTime,
		EndDate:      testTime,
		MaxAttendees: 100,
		Created:      testTime,
	}
	var c2 Conference
	err = c2.Decode(c.Encode())
	if err != nil {
		t.Errorf("Conference.Decode failed with error: %v", err)
	}
	if !bytes.Equal(c2.Encode(), c.Encode()) {
		t.Errorf("Conference did not survive a decode/encode round trip")
	}

	err = c2.Decode([]byte("truncated"))
	if err != datastore.ErrDecoding {
		t.Errorf("Conference.Decode of junk returned %v, expected ErrDecoding", err)
	}
}

// TestProfile tests lazy profile creation and updates.
func TestProfile(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := GetProfile(ctx, store, testUserID)
	if err != datastore.ErrNoSuchEntity {
		t.Errorf("GetProfile of missing profile returned %v, expected ErrNoSuchEntity", err)
	}

	// First access creates the profile, defaulting the display name to
	// the local part of the email address.
	p, err := GetOrCreateProfile(ctx, store, testUserID, "", testUserEmail)
	if err != nil {
		t.Fatalf("GetOrCreateProfile failed with error: %v", err)
	}
	if p.DisplayName != "organizer" {
		t.Errorf("DisplayName is %s, expected organizer", p.DisplayName)
	}
	if p.MainEmail != testUserEmail {
		t.Errorf("MainEmail is %s, expected %s", p.MainEmail, testUserEmail)
	}

	// A second access returns the same profile.
	p2, err := GetOrCreateProfile(ctx, store, testUserID, "Someone Else", testUserEmail2)
	if err != nil {
		t.Fatalf("GetOrCreateProfile failed with error: %v", err)
	}
	if p2.DisplayName != "organizer" {
		t.Errorf("DisplayName is %s, expected organizer", p2.DisplayName)
	}

	// SaveProfile updates the display name.
	p3, err := SaveProfile(ctx, store, testUserID, "The Organizer", testUserEmail)
	if err != nil {
		t.Fatalf("SaveProfile failed with error: %v", err)
	}
	if p3.DisplayName != "The Organizer" {
		t.Errorf("DisplayName is %s, expected The Organizer", p3.DisplayName)
	}
	p4, err := GetProfile(ctx, store, testUserID)
	if err != nil {
		t.Fatalf("GetProfile failed with error: %v", err)
	}
	if p4.DisplayName != "The Organizer" {
		t.Errorf("DisplayName is %s after reload, expected The Organizer", p4.DisplayName)
	}
}

// TestConference tests conference creation, defaults and lookup.
func TestConference(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	// A name is required.
	_, err := CreateConference(ctx, store, testUserID, &Conference{})
	if err != ErrNameRequired {
		t.Errorf("CreateConference without name returned %v, expected ErrNameRequired", err)
	}

	// Negative capacity is rejected.
	_, err = CreateConference(ctx, store, testUserID, &Conference{Name: testConfName, MaxAttendees: -1})
	if err != ErrInvalidCapacity {
		t.Errorf("CreateConference with negative capacity returned %v, expected ErrInvalidCapacity", err)
	}

	// Defaults are applied with no optional fields given.
	c := Conference{Name: testConfName}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	if c.City != DefaultCity {
		t.Errorf("City is %s, expected %s", c.City, DefaultCity)
	}
	if len(c.Topics) != 2 || c.Topics[0] != "Default" || c.Topics[1] != "Topic" {
		t.Errorf("Topics are %v, expected defaults", c.Topics)
	}
	if c.Month != 0 {
		t.Errorf("Month is %d for an unscheduled conference, expected 0", c.Month)
	}
	if c.SeatsAvailable != 0 {
		t.Errorf("SeatsAvailable is %d for an uncapped conference, expected 0", c.SeatsAvailable)
	}

	// Month is derived from the start date and seats are mirrored from
	// the capacity.
	c2 := Conference{
		Name:         "October Conf",
		StartDate:    time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC),
		MaxAttendees: 50,
	}
	_, err = CreateConference(ctx, store, testUserID, &c2)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	if c2.Month != 10 {
		t.Errorf("Month is %d, expected 10", c2.Month)
	}
	if c2.SeatsAvailable != 50 {
		t.Errorf("SeatsAvailable is %d, expected 50", c2.SeatsAvailable)
	}

	// Lookup by websafe key.
	got, err := GetConference(ctx, store, key.Encode())
	if err != nil {
		t.Fatalf("GetConference failed with error: %v", err)
	}
	if got.Name != testConfName {
		t.Errorf("Name is %s, expected %s", got.Name, testConfName)
	}

	// Junk and wrong-kind keys are rejected.
	_, err = GetConference(ctx, store, "junk")
	if err != ErrInvalidKey {
		t.Errorf("GetConference with junk key returned %v, expected ErrInvalidKey", err)
	}
	_, err = GetConference(ctx, store, store.NameKey(typeProfile, "x").Encode())
	if err != ErrInvalidKey {
		t.Errorf("GetConference with profile key returned %v, expected ErrInvalidKey", err)
	}

	// Conferences created by the organizer, ordered by name.
	confs, keys, err := GetConferencesCreated(ctx, store, testUserID)
	if err != nil {
		t.Fatalf("GetConferencesCreated failed with error: %v", err)
	}
	if len(confs) != 2 || len(keys) != 2 {
		t.Fatalf("GetConferencesCreated returned %d conferences, expected 2", len(confs))
	}
	if confs[0].Name != testConfName || confs[1].Name != "October Conf" {
		t.Errorf("conferences out of order: %s, %s", confs[0].Name, confs[1].Name)
	}

	confs, _, err = GetConferencesCreated(ctx, store, testUserID2)
	if err != nil {
		t.Fatalf("GetConferencesCreated failed with error: %v", err)
	}
	if len(confs) != 0 {
		t.Errorf("GetConferencesCreated for another user returned %d conferences, expected 0", len(confs))
	}
}

// TestRegistration tests the registration ledger, including seat
// accounting on capped conferences.
func TestRegistration(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := Conference{Name: testConfName, MaxAttendees: 5}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	wsck := key.Encode()

	// Fill every seat.
	for i := 0; i < 5; i++ {
		uid := fmt.Sprintf("user%d", i)
		err = RegisterForConference(ctx, store, uid, uid+"@openconf.org", wsck)
		if err != nil {
			t.Fatalf("RegisterForConference #%d failed with error: %v", i, err)
		}
	}
	got, err := GetConference(ctx, store, wsck)
	if err != nil {
		t.Fatalf("GetConference failed with error: %v", err)
	}
	if got.SeatsAvailable != 0 {
		t.Errorf("SeatsAvailable is %d after filling, expected 0", got.SeatsAvailable)
	}

	// A sixth registration conflicts.
	err = RegisterForConference(ctx, store, "user5", "user5@openconf.org", wsck)
	if err != ErrNoSeatsAvailable {
		t.Errorf("RegisterForConference on full conference returned %v, expected ErrNoSeatsAvailable", err)
	}

	// Registering twice conflicts and does not mutate anything.
	err = RegisterForConference(ctx, store, "user0", "user0@openconf.org", wsck)
	if err != ErrAlreadyRegistered {
		t.Errorf("duplicate RegisterForConference returned %v, expected ErrAlreadyRegistered", err)
	}
	got, _ = GetConference(ctx, store, wsck)
	if got.SeatsAvailable != 0 {
		t.Errorf("SeatsAvailable is %d after failed registration, expected 0", got.SeatsAvailable)
	}

	// Unregistering returns the seat and empties the attending set.
	changed, err := UnregisterFromConference(ctx, store, "user0", "user0@openconf.org", wsck)
	if err != nil {
		t.Fatalf("UnregisterFromConference failed with error: %v", err)
	}
	if !changed {
		t.Errorf("UnregisterFromConference reported no change")
	}
	got, _ = GetConference(ctx, store, wsck)
	if got.SeatsAvailable != 1 {
		t.Errorf("SeatsAvailable is %d after unregistering, expected 1", got.SeatsAvailable)
	}
	p, err := GetProfile(ctx, store, "user0")
	if err != nil {
		t.Fatalf("GetProfile failed with error: %v", err)
	}
	if len(p.Attending) != 0 {
		t.Errorf("Attending is %v after unregistering, expected empty", p.Attending)
	}

	// Unregistering when not registered is a no-op, not an error.
	changed, err = UnregisterFromConference(ctx, store, "user0", "user0@openconf.org", wsck)
	if err != nil {
		t.Fatalf("UnregisterFromConference failed with error: %v", err)
	}
	if changed {
		t.Errorf("UnregisterFromConference of unregistered user reported a change")
	}
	got, _ = GetConference(ctx, store, wsck)
	if got.SeatsAvailable != 1 {
		t.Errorf("SeatsAvailable is %d after no-op unregister, expected 1", got.SeatsAvailable)
	}

	// Registering for a missing conference is NotFound.
	missing := store.IDKey(typeConference, 42).Encode()
	err = RegisterForConference(ctx, store, "user0", "user0@openconf.org", missing)
	if err != datastore.ErrNoSuchEntity {
		t.Errorf("RegisterForConference for missing conference returned %v, expected ErrNoSuchEntity", err)
	}

	// Uncapped conferences have no seat accounting.
	c2 := Conference{Name: "Uncapped"}
	key2, err := CreateConference(ctx, store, testUserID, &c2)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	for i := 0; i < 10; i++ {
		uid := fmt.Sprintf("open%d", i)
		err = RegisterForConference(ctx, store, uid, uid+"@openconf.org", key2.Encode())
		if err != nil {
			t.Fatalf("RegisterForConference #%d failed with error: %v", i, err)
		}
	}
	got, _ = GetConference(ctx, store, key2.Encode())
	if got.SeatsAvailable != 0 || got.MaxAttendees != 0 {
		t.Errorf("uncapped conference mutated: seats %d, max %d", got.SeatsAvailable, got.MaxAttendees)
	}

	// The attending set resolves back to conferences.
	p, err = GetProfile(ctx, store, "user1")
	if err != nil {
		t.Fatalf("GetProfile failed with error: %v", err)
	}
	confs, keys, err := GetConferencesToAttend(ctx, store, p)
	if err != nil {
		t.Fatalf("GetConferencesToAttend failed with error: %v", err)
	}
	if len(confs) != 1 || len(keys) != 1 || confs[0].Name != testConfName {
		t.Errorf("GetConferencesToAttend returned %v, expected one %s", confs, testConfName)
	}
}

// TestSession tests session creation and queries.
func TestSession(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := Conference{Name: testConfName}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	wsck := key.Encode()

	// Only the organizer may create sessions.
	s := Session{Name: "Keynote", Speaker: "Rob", TypeOfSession: "keynote"}
	_, err = CreateSession(ctx, store, testUserID2, wsck, &s)
	if err != ErrNotOrganizer {
		t.Errorf("CreateSession by non-organizer returned %v, expected ErrNotOrganizer", err)
	}

	// A name is required.
	_, err = CreateSession(ctx, store, testUserID, wsck, &Session{})
	if err != ErrNameRequired {
		t.Errorf("CreateSession without name returned %v, expected ErrNameRequired", err)
	}

	skey, err := CreateSession(ctx, store, testUserID, wsck, &s)
	if err != nil {
		t.Fatalf("CreateSession failed with error: %v", err)
	}
	if s.ConfKey != wsck {
		t.Errorf("ConfKey is %s, expected %s", s.ConfKey, wsck)
	}

	_, err = CreateSession(ctx, store, testUserID, wsck,
		&Session{Name: "Workshop", Speaker: "Ken", TypeOfSession: "workshop"})
	if err != nil {
		t.Fatalf("CreateSession failed with error: %v", err)
	}

	got, err := GetSession(ctx, store, skey.Encode())
	if err != nil {
		t.Fatalf("GetSession failed with error: %v", err)
	}
	if got.Name != "Keynote" {
		t.Errorf("Name is %s, expected Keynote", got.Name)
	}

	sessions, _, err := GetConferenceSessions(ctx, store, wsck)
	if err != nil {
		t.Fatalf("GetConferenceSessions failed with error: %v", err)
	}
	if len(sessions) != 2 {
		t.Errorf("GetConferenceSessions returned %d sessions, expected 2", len(sessions))
	}

	sessions, _, err = GetConferenceSessionsByType(ctx, store, wsck, "workshop")
	if err != nil {
		t.Fatalf("GetConferenceSessionsByType failed with error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Name != "Workshop" {
		t.Errorf("GetConferenceSessionsByType returned %v, expected the workshop", sessions)
	}

	sessions, _, err = GetSessionsBySpeaker(ctx, store, "Rob")
	if err != nil {
		t.Fatalf("GetSessionsBySpeaker failed with error: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Name != "Keynote" {
		t.Errorf("GetSessionsBySpeaker returned %v, expected the keynote", sessions)
	}

	// Listing sessions of a missing conference is NotFound.
	missing := store.IDKey(typeConference, 42).Encode()
	_, _, err = GetConferenceSessions(ctx, store, missing)
	if err != datastore.ErrNoSuchEntity {
		t.Errorf("GetConferenceSessions for missing conference returned %v, expected ErrNoSuchEntity", err)
	}
}

// TestWishlist tests the wishlist index.
func TestWishlist(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := Conference{Name: testConfName}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	s := Session{Name: "Keynote", Speaker: "Rob"}
	skey, err := CreateSession(ctx, store, testUserID, key.Encode(), &s)
	if err != nil {
		t.Fatalf("CreateSession failed with error: %v", err)
	}
	wssk := skey.Encode()

	// A wishlist key must reference a session.
	_, err = AddSessionToWishlist(ctx, store, testUserID2, testUserEmail2, key.Encode())
	if err != ErrInvalidKey {
		t.Errorf("AddSessionToWishlist with conference key returned %v, expected ErrInvalidKey", err)
	}
	missing := store.IDKey(typeSession, 42).Encode()
	_, err = AddSessionToWishlist(ctx, store, testUserID2, testUserEmail2, missing)
	if err != datastore.ErrNoSuchEntity {
		t.Errorf("AddSessionToWishlist with missing session returned %v, expected ErrNoSuchEntity", err)
	}

	// Adding is idempotent.
	for i := 0; i < 2; i++ {
		_, err = AddSessionToWishlist(ctx, store, testUserID2, testUserEmail2, wssk)
		if err != nil {
			t.Fatalf("AddSessionToWishlist #%d failed with error: %v", i, err)
		}
	}
	p, err := GetProfile(ctx, store, testUserID2)
	if err != nil {
		t.Fatalf("GetProfile failed with error: %v", err)
	}
	if len(p.Wishlist) != 1 {
		t.Errorf("Wishlist has %d entries after duplicate add, expected 1", len(p.Wishlist))
	}

	sessions, keys, err := GetSessionsInWishlist(ctx, store, testUserID2)
	if err != nil {
		t.Fatalf("GetSessionsInWishlist failed with error: %v", err)
	}
	if len(sessions) != 1 || len(keys) != 1 || sessions[0].Name != "Keynote" {
		t.Errorf("GetSessionsInWishlist returned %v, expected the keynote", sessions)
	}

	// A wishlist for an unknown user is empty, not an error.
	sessions, _, err = GetSessionsInWishlist(ctx, store, "nobody")
	if err != nil {
		t.Fatalf("GetSessionsInWishlist failed with error: %v", err)
	}
	if sessions != nil {
		t.Errorf("GetSessionsInWishlist for unknown user returned %v, expected nothing", sessions)
	}

	// Keys of deleted sessions are omitted.
	err = store.Delete(ctx, skey)
	if err != nil {
		t.Fatalf("Delete failed with error: %v", err)
	}
	sessions, _, err = GetSessionsInWishlist(ctx, store, testUserID2)
	if err != nil {
		t.Fatalf("GetSessionsInWishlist failed with error: %v", err)
	}
	if len(sessions) != 0 {
		t.Errorf("GetSessionsInWishlist returned %d sessions after deletion, expected 0", len(sessions))
	}
}

// TestAttenders tests the profile scans for conference and session interest.
func TestAttenders(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := Conference{Name: testConfName, MaxAttendees: 10}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	wsck := key.Encode()
	s := Session{Name: "Keynote", Speaker: "Rob"}
	skey, err := CreateSession(ctx, store, testUserID, wsck, &s)
	if err != nil {
		t.Fatalf("CreateSession failed with error: %v", err)
	}

	err = RegisterForConference(ctx, store, testUserID2, testUserEmail2, wsck)
	if err != nil {
		t.Fatalf("RegisterForConference failed with error: %v", err)
	}
	_, err = AddSessionToWishlist(ctx, store, testUserID2, testUserEmail2, skey.Encode())
	if err != nil {
		t.Fatalf("AddSessionToWishlist failed with error: %v", err)
	}

	attenders, err := AttendersOfConference(ctx, store, wsck)
	if err != nil {
		t.Fatalf("AttendersOfConference failed with error: %v", err)
	}
	if len(attenders) != 1 || attenders[0].UserID != testUserID2 {
		t.Errorf("AttendersOfConference returned %v, expected %s", attenders, testUserID2)
	}

	interested, err := AttendersOfSession(ctx, store, skey.Encode())
	if err != nil {
		t.Fatalf("AttendersOfSession failed with error: %v", err)
	}
	if len(interested) != 1 || interested[0].UserID != testUserID2 {
		t.Errorf("AttendersOfSession returned %v, expected %s", interested, testUserID2)
	}
}

// TestClearAllData tests bulk deletion and profile resets.
func TestClearAllData(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c := Conference{Name: testConfName, MaxAttendees: 10}
	key, err := CreateConference(ctx, store, testUserID, &c)
	if err != nil {
		t.Fatalf("CreateConference failed with error: %v", err)
	}
	wsck := key.Encode()
	s := Session{Name: "Keynote", Speaker: "Rob"}
	skey, err := CreateSession(ctx, store, testUserID, wsck, &s)
	if err != nil {
		t.Fatalf("CreateSession failed with error: %v", err)
	}
	err = RegisterForConference(ctx, store, testUserID2, testUserEmail2, wsck)
	if err != nil {
		t.Fatalf("RegisterForConference failed with error: %v", err)
	}
	_, err = AddSessionToWishlist(ctx, store, testUserID2, testUserEmail2, skey.Encode())
	if err != nil {
		t.Fatalf("AddSessionToWishlist failed with error: %v", err)
	}

	err = ClearAllData(ctx, store)
	if err != nil {
		t.Fatalf("ClearAllData failed with error: %v", err)
	}

	_, err = GetConference(ctx, store, wsck)
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		t.Errorf("GetConference after clear returned %v, expected ErrNoSuchEntity", err)
	}
	_, err = GetSession(ctx, store, skey.Encode())
	if !errors.Is(err, datastore.ErrNoSuchEntity) {
		t.Errorf("GetSession after clear returned %v, expected ErrNoSuchEntity", err)
	}
	p, err := GetProfile(ctx, store, testUserID2)
	if err != nil {
		t.Fatalf("GetProfile failed with error: %v", err)
	}
	if len(p.Attending) != 0 || len(p.Wishlist) != 0 {
		t.Errorf("profile not reset after clear: attending %v, wishlist %v", p.Attending, p.Wishlist)
	}

	// Clearing an already-empty datastore is fine.
	err = ClearAllData(ctx, store)
	if err != nil {
		t.Fatalf("second ClearAllData failed with error: %v", err)
	}
}
