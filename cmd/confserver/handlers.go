/*
LICENSE
  Copyright (C) 2026 the OpenConf project.

  This file is part of Conf Server. Conf Server is free software: you
  can redistribute it and/or modify it under the terms of the GNU
  General Public License as published by the Free Software
  Foundation, either version 3 of the License, or (at your option)
  any later version.

  Conf Server is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  along with Conf Server in gpl.txt.  If not, see
  <http://www.gnu.org/licenses/>.
*/

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openconf/cloud/backend"
	"github.com/openconf/cloud/datastore"
	"github.com/openconf/cloud/model"
)

const (
	dateFormat = "2006-01-02"
	timeFormat = "15:04"
)

// conferenceForm is the wire representation of a conference.
type conferenceForm struct {
	WebsafeKey           string   `json:"websafeKey"`
	Name                 string   `json:"name"`
	Description          string   `json:"description,omitempty"`
	OrganizerUserID      string   `json:"organizerUserId"`
	OrganizerDisplayName string   `json:"organizerDisplayName"`
	City                 string   `json:"city"`
	Topics               []string `json:"topics"`
	StartDate            string   `json:"startDate,omitempty"`
	EndDate              string   `json:"endDate,omitempty"`
	Month                int      `json:"month"`
	MaxAttendees         int      `json:"maxAttendees"`
	SeatsAvailable       int      `json:"seatsAvailable"`
}

// sessionForm is the wire representation of a session.
type sessionForm struct {
	WebsafeKey     string `json:"websafeKey"`
	WebsafeConfKey string `json:"websafeConferenceKey"`
	Name           string `json:"name"`
	Highlights     string `json:"highlights,omitempty"`
	Speaker        string `json:"speaker"`
	Duration       int    `json:"duration"`
	TypeOfSession  string `json:"typeOfSession"`
	Date           string `json:"date,omitempty"`
	StartTime      string `json:"startTime,omitempty"`
}

// profileForm is the wire representation of a profile.
type profileForm struct {
	DisplayName string `json:"displayName"`
	MainEmail   string `json:"mainEmail"`
}

func toConferenceForm(c *model.Conference, wsck, organizerName string) conferenceForm {
	f := conferenceForm{
		WebsafeKey:           wsck,
		Name:                 c.Name,
		Description:          c.Description,
		OrganizerUserID:      c.Organizer,
		OrganizerDisplayName: organizerName,
		City:                 c.City,
		Topics:               c.Topics,
		Month:                c.Month,
		MaxAttendees:         c.MaxAttendees,
		SeatsAvailable:       c.SeatsAvailable,
	}
	if !c.StartDate.IsZero() {
		f.StartDate = c.StartDate.Format(dateFormat)
	}
	if !c.EndDate.IsZero() {
		f.EndDate = c.EndDate.Format(dateFormat)
	}
	return f
}

func toSessionForm(s *model.Session, wssk string) sessionForm {
	f := sessionForm{
		WebsafeKey:     wssk,
		WebsafeConfKey: s.ConfKey,
		Name:           s.Name,
		Highlights:     s.Highlights,
		Speaker:        s.Speaker,
		Duration:       s.Duration,
		TypeOfSession:  s.TypeOfSession,
	}
	if !s.Date.IsZero() {
		f.Date = s.Date.Format(dateFormat)
	}
	if s.StartTime != 0 {
		f.StartTime = fmt.Sprintf("%02d:%02d", s.StartTime/60, s.StartTime%60)
	}
	return f
}

// caller returns the user ID and email of the caller, from the
// request session or, in standalone mode, from the X-User-ID and
// X-User-Email headers. If no identity is present a 401 response is
// written and ok is false.
func caller(w http.ResponseWriter, r *http.Request) (userID, email string, ok bool) {
	h := backend.NewNetHandler(w, r, cookieStore)
	sess, err := h.LoadSession(sessionName)
	if err == nil {
		sess.Get("uid", &userID)
		sess.Get("email", &email)
	}

	if userID == "" && standalone {
		userID = r.Header.Get("X-User-ID")
		email = r.Header.Get("X-User-Email")
	}

	if userID == "" {
		writeError(w, http.StatusUnauthorized, "no user identity")
		return "", "", false
	}
	return userID, email, true
}

// writeData writes JSON data to the response writer.
func writeData(w http.ResponseWriter, data any) {
	b, err := json.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not marshal response: %v", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(b)
}

// writeError writes http errors to the response writer, in order to provide more detailed
// response errors in a concise manner.
func writeError(w http.ResponseWriter, code int, msg string, args ...interface{}) {
	errorMsg := "%s: "
	if msg != "" {
		errorMsg += msg
	}
	if len(args) > 0 {
		errorMsg += ": "
		errorMsg = fmt.Sprintf(errorMsg, http.StatusText(code), args)
	} else {
		errorMsg = fmt.Sprintf(errorMsg, http.StatusText(code))
	}
	http.Error(w, errorMsg, code)
}

// writeModelError maps model and datastore errors onto HTTP status codes.
func writeModelError(w http.ResponseWriter, err error) {
	var code int
	switch {
	case errors.Is(err, model.ErrNameRequired),
		errors.Is(err, model.ErrInvalidCapacity),
		errors.Is(err, model.ErrInvalidKey),
		errors.Is(err, model.ErrInvalidFilter),
		errors.Is(err, model.ErrMultipleInequalityFields):
		code = http.StatusBadRequest
	case errors.Is(err, datastore.ErrNoSuchEntity):
		code = http.StatusNotFound
	case errors.Is(err, model.ErrNotOrganizer):
		code = http.StatusForbidden
	case errors.Is(err, model.ErrAlreadyRegistered),
		errors.Is(err, model.ErrNoSeatsAvailable):
		code = http.StatusConflict
	default:
		code = http.StatusInternalServerError
	}
	writeError(w, code, "%v", err)
}

// dispatchTask enqueues a background task, logging rather than
// failing the request upon error.
func dispatchTask(kind string, params map[string]string) {
	id, err := dispatcher.Dispatch(kind, params)
	if err != nil {
		log.Printf("could not dispatch %s task: %v", kind, err)
		return
	}
	if debug {
		log.Printf("dispatched %s task %s", kind, id)
	}
}

// loginHandler stores the supplied identity in the session cookie.
// Identity verification is left to the fronting infrastructure.
func loginHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)

	userID := r.FormValue("userId")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "userId required")
		return
	}

	h := backend.NewNetHandler(w, r, cookieStore)
	sess, err := h.LoadSession(sessionName)
	if err != nil {
		// A stale or tampered cookie is replaced with a fresh session.
		gs, _ := cookieStore.New(r, sessionName)
		sess = backend.NewGorillaSession(gs)
	}
	sess.Set("uid", userID)
	sess.Set("email", r.FormValue("email"))
	sess.SetMaxAge(7 * 24 * time.Hour)
	err = h.SaveSession(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "could not save session: %v", err)
		return
	}
	writeData(w, map[string]string{"userId": userID})
}

func profileGetHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := model.GetOrCreateProfile(r.Context(), confStore, userID, "", email)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, profileForm{DisplayName: p.DisplayName, MainEmail: p.MainEmail})
}

func profileSaveHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := model.SaveProfile(r.Context(), confStore, userID, r.FormValue("displayName"), email)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, profileForm{DisplayName: p.DisplayName, MainEmail: p.MainEmail})
}

func conferenceCreateHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	c := model.Conference{
		Name:        r.FormValue("name"),
		Description: r.FormValue("description"),
		City:        r.FormValue("city"),
	}
	if v := r.FormValue("topics"); v != "" {
		c.Topics = strings.Split(v, ",")
	}
	var err error
	if v := r.FormValue("startDate"); v != "" {
		c.StartDate, err = time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startDate: %v", err)
			return
		}
	}
	if v := r.FormValue("endDate"); v != "" {
		c.EndDate, err = time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid endDate: %v", err)
			return
		}
	}
	if v := r.FormValue("maxAttendees"); v != "" {
		c.MaxAttendees, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid maxAttendees: %v", err)
			return
		}
	}

	key, err := model.CreateConference(r.Context(), confStore, userID, &c)
	if err != nil {
		writeModelError(w, err)
		return
	}

	p, err := model.GetOrCreateProfile(r.Context(), confStore, userID, "", email)
	if err != nil {
		writeModelError(w, err)
		return
	}

	if p.MainEmail != "" {
		dispatchTask("send_confirmation_email", map[string]string{
			"email": p.MainEmail,
			"name":  c.Name,
		})
	}

	writeData(w, toConferenceForm(&c, key.Encode(), p.DisplayName))
}

func conferenceGetHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	wsck := r.FormValue("conference")
	c, err := model.GetConference(r.Context(), confStore, wsck)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, toConferenceForm(c, wsck, displayName(r.Context(), c.Organizer)))
}

func conferencesCreatedHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}

	confs, keys, err := model.GetConferencesCreated(r.Context(), confStore, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeConferences(r.Context(), w, confs, keys)
}

func conferencesToAttendHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	p, err := model.GetOrCreateProfile(r.Context(), confStore, userID, "", email)
	if err != nil {
		writeModelError(w, err)
		return
	}
	confs, keys, err := model.GetConferencesToAttend(r.Context(), confStore, p)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeConferences(r.Context(), w, confs, keys)
}

func conferenceQueryHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)

	var filters []model.Filter
	if r.Body != nil {
		err := json.NewDecoder(r.Body).Decode(&filters)
		if err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "could not decode filters: %v", err)
			return
		}
	}

	confs, keys, err := model.QueryConferences(r.Context(), confStore, filters)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeConferences(r.Context(), w, confs, keys)
}

// writeConferences writes a list of conferences with organizer
// display names resolved in bulk.
func writeConferences(ctx context.Context, w http.ResponseWriter, confs []model.Conference, keys []*datastore.Key) {
	names := make(map[string]string)
	for i := range confs {
		names[confs[i].Organizer] = ""
	}
	for id := range names {
		names[id] = displayName(ctx, id)
	}

	forms := make([]conferenceForm, len(confs))
	for i := range confs {
		forms[i] = toConferenceForm(&confs[i], keys[i].Encode(), names[confs[i].Organizer])
	}
	writeData(w, forms)
}

// displayName returns the display name of the profile with the given
// user ID, or the empty string if there is none.
func displayName(ctx context.Context, userID string) string {
	p, err := model.GetProfile(ctx, confStore, userID)
	if err != nil {
		return ""
	}
	return p.DisplayName
}

func registerHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	err := model.RegisterForConference(r.Context(), confStore, userID, email, r.FormValue("conference"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, map[string]bool{"registered": true})
}

func unregisterHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	changed, err := model.UnregisterFromConference(r.Context(), confStore, userID, email, r.FormValue("conference"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, map[string]bool{"unregistered": changed})
}

func sessionCreateHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	wsck := r.FormValue("conference")
	s := model.Session{
		Name:          r.FormValue("name"),
		Highlights:    r.FormValue("highlights"),
		Speaker:       r.FormValue("speaker"),
		TypeOfSession: r.FormValue("typeOfSession"),
	}
	var err error
	if v := r.FormValue("duration"); v != "" {
		s.Duration, err = strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid duration: %v", err)
			return
		}
	}
	if v := r.FormValue("date"); v != "" {
		s.Date, err = time.Parse(dateFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date: %v", err)
			return
		}
	}
	if v := r.FormValue("startTime"); v != "" {
		tm, err := time.Parse(timeFormat, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid startTime: %v", err)
			return
		}
		s.StartTime = tm.Hour()*60 + tm.Minute()
	}

	key, err := model.CreateSession(r.Context(), confStore, userID, wsck, &s)
	if err != nil {
		writeModelError(w, err)
		return
	}

	if s.Speaker != "" {
		dispatchTask("check_featured_speaker", map[string]string{
			"conference": wsck,
			"speaker":    s.Speaker,
		})
	}
	if email != "" {
		dispatchTask("send_session_confirmation_email", map[string]string{
			"email": email,
			"name":  s.Name,
		})
	}

	writeData(w, toSessionForm(&s, key.Encode()))
}

func conferenceSessionsHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	sessions, keys, err := model.GetConferenceSessions(r.Context(), confStore, r.FormValue("conference"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeSessions(w, sessions, keys)
}

func conferenceSessionsByTypeHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	sessions, keys, err := model.GetConferenceSessionsByType(r.Context(), confStore,
		r.FormValue("conference"), r.FormValue("typeOfSession"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeSessions(w, sessions, keys)
}

func sessionsBySpeakerHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	speaker := r.FormValue("speaker")
	if speaker == "" {
		writeError(w, http.StatusBadRequest, "speaker required")
		return
	}
	sessions, keys, err := model.GetSessionsBySpeaker(r.Context(), confStore, speaker)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeSessions(w, sessions, keys)
}

func writeSessions(w http.ResponseWriter, sessions []model.Session, keys []*datastore.Key) {
	forms := make([]sessionForm, len(sessions))
	for i := range sessions {
		forms[i] = toSessionForm(&sessions[i], keys[i].Encode())
	}
	writeData(w, forms)
}

func wishlistAddHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, email, ok := caller(w, r)
	if !ok {
		return
	}

	wssk := r.FormValue("session")
	s, err := model.AddSessionToWishlist(r.Context(), confStore, userID, email, wssk)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, toSessionForm(s, wssk))
}

func wishlistGetHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	userID, _, ok := caller(w, r)
	if !ok {
		return
	}

	sessions, keys, err := model.GetSessionsInWishlist(r.Context(), confStore, userID)
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeSessions(w, sessions, keys)
}

func conferenceAttendersHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	_, _, ok := caller(w, r)
	if !ok {
		return
	}

	profiles, err := model.AttendersOfConference(r.Context(), confStore, r.FormValue("conference"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeProfiles(w, profiles)
}

func sessionAttendersHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	_, _, ok := caller(w, r)
	if !ok {
		return
	}

	profiles, err := model.AttendersOfSession(r.Context(), confStore, r.FormValue("session"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeProfiles(w, profiles)
}

func writeProfiles(w http.ResponseWriter, profiles []model.Profile) {
	forms := make([]profileForm, len(profiles))
	for i, p := range profiles {
		forms[i] = profileForm{DisplayName: p.DisplayName, MainEmail: p.MainEmail}
	}
	writeData(w, forms)
}

func announcementHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	writeData(w, map[string]string{"announcement": recomputer.Announcement(r.Context())})
}

func featuredSpeakerHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	speaker, err := recomputer.FeaturedSpeaker(r.Context(), r.FormValue("conference"))
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, map[string]string{"featuredSpeaker": speaker})
}

// announcementRefreshHandler recomputes the sell-out announcement on
// demand, in addition to the scheduled refresh.
func announcementRefreshHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	announcement, err := recomputer.RefreshAnnouncement(r.Context())
	if err != nil {
		writeModelError(w, err)
		return
	}
	writeData(w, map[string]string{"announcement": announcement})
}

// clearHandler deletes all conferences and sessions and resets every
// profile. It is intended for development environments only.
func clearHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	if !standalone {
		writeError(w, http.StatusForbidden, "clear is only available in standalone mode")
		return
	}
	err := model.ClearAllData(r.Context(), confStore)
	if err != nil {
		writeModelError(w, err)
		return
	}
	// The announcement may reference deleted conferences.
	_, err = recomputer.RefreshAnnouncement(r.Context())
	if err != nil {
		writeModelError(w, err)
		return
	}
	w.Write([]byte("OK"))
}
