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

// Conf Server is a cloud service for managing conferences, their
// sessions and attendee registrations.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	cron "github.com/robfig/cron/v3"

	"github.com/openconf/cloud/cache"
	"github.com/openconf/cloud/datastore"
	"github.com/openconf/cloud/dispatch"
	"github.com/openconf/cloud/model"
	"github.com/openconf/cloud/notify"
	"github.com/openconf/cloud/recompute"
)

const (
	projectID = "openconf"
	version   = "v0.1.0"

	// sessionName is the name of the cookie carrying the caller identity.
	sessionName = "openconf"

	// announcementSchedule is how often the sell-out announcement is
	// recomputed in the background.
	announcementSchedule = "@every 1h"

	// notifyPeriod suppresses repeat notifications of the same kind to
	// the same recipient within this period.
	notifyPeriod = 10 * time.Minute
)

var (
	setupMutex    sync.Mutex
	confStore     datastore.Store
	debug         bool
	standalone    bool
	filestorePath string
	memCache      *cache.MemCache
	recomputer    *recompute.Recomputer
	dispatcher    *dispatch.Dispatcher
	notifier      notify.Notifier
	cookieStore   *sessions.CookieStore
	scheduler     *cron.Cron
)

func main() {
	defaultPort := 8080
	v := os.Getenv("PORT")
	if v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			defaultPort = i
		}
	}

	var host string
	var port int
	flag.BoolVar(&debug, "debug", false, "Run in debug mode.")
	flag.BoolVar(&standalone, "standalone", false, "Run in standalone mode.")
	flag.StringVar(&host, "host", "localhost", "Host we run on in standalone mode")
	flag.IntVar(&port, "port", defaultPort, "Port we listen on in standalone mode")
	flag.StringVar(&filestorePath, "filestore", "store", "File store directory in standalone mode")
	flag.Parse()

	// Perform one-time setup or bail.
	ctx := context.Background()
	setup(ctx)

	http.HandleFunc("/_ah/warmup", warmupHandler)
	http.HandleFunc("/login", loginHandler)
	http.HandleFunc("/profile/get", profileGetHandler)
	http.HandleFunc("/profile/save", profileSaveHandler)
	http.HandleFunc("/conference/create", conferenceCreateHandler)
	http.HandleFunc("/conference/get", conferenceGetHandler)
	http.HandleFunc("/conference/created", conferencesCreatedHandler)
	http.HandleFunc("/conference/attending", conferencesToAttendHandler)
	http.HandleFunc("/conference/query", conferenceQueryHandler)
	http.HandleFunc("/conference/register", registerHandler)
	http.HandleFunc("/conference/unregister", unregisterHandler)
	http.HandleFunc("/session/create", sessionCreateHandler)
	http.HandleFunc("/session/list", conferenceSessionsHandler)
	http.HandleFunc("/session/listbytype", conferenceSessionsByTypeHandler)
	http.HandleFunc("/session/byspeaker", sessionsBySpeakerHandler)
	http.HandleFunc("/wishlist/add", wishlistAddHandler)
	http.HandleFunc("/wishlist/get", wishlistGetHandler)
	http.HandleFunc("/conference/attenders", conferenceAttendersHandler)
	http.HandleFunc("/session/attenders", sessionAttendersHandler)
	http.HandleFunc("/announcement/get", announcementHandler)
	http.HandleFunc("/speaker/featured", featuredSpeakerHandler)
	http.HandleFunc("/crons/announcement", announcementRefreshHandler)
	http.HandleFunc("/admin/clear", clearHandler)
	http.HandleFunc("/", indexHandler)

	log.Printf("Listening on %s:%d", host, port)
	log.Fatal(http.ListenAndServe(fmt.Sprintf("%s:%d", host, port), nil))
}

// warmupHandler handles App Engine warmup requests. It simply ensures that the instance is loaded.
func warmupHandler(w http.ResponseWriter, r *http.Request) {
	indexHandler(w, r)
}

// indexHandler handles requests for the home page and is here just to
// test that the service is running.
func indexHandler(w http.ResponseWriter, r *http.Request) {
	logRequest(r)
	w.Write([]byte(projectID + " " + version))
}

// setup executes per-instance one-time warmup and is used to
// initialize the datastore, the cache, the task dispatcher, the cron
// scheduler and the notifier. Any errors are considered fatal.
func setup(ctx context.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	if confStore != nil {
		return
	}

	var err error
	if standalone {
		log.Printf("Running in standalone mode")
		confStore, err = datastore.NewStore(ctx, "file", projectID, filestorePath)
	} else {
		log.Printf("Running in App Engine mode")
		confStore, err = datastore.NewStore(ctx, "cloud", projectID, "")
	}
	if err != nil {
		log.Fatalf("could not set up datastore: %v", err)
	}
	model.RegisterEntities()

	memCache = cache.NewMemCache()
	recomputer = recompute.NewRecomputer(confStore, memCache)

	cookieStore = sessions.NewCookieStore(sessionKey())

	// Notifier secrets are optional; without them notifications are
	// logged but not emailed.
	opts := []notify.Option{notify.WithStore(notify.NewCacheStore(memCache, notifyPeriod))}
	publicKey := os.Getenv("MAILJET_PUBLIC_KEY")
	privateKey := os.Getenv("MAILJET_PRIVATE_KEY")
	if publicKey != "" && privateKey != "" {
		opts = append(opts, notify.WithSecrets(map[string]string{
			"mailjetPublicKey":  publicKey,
			"mailjetPrivateKey": privateKey,
		}))
	} else {
		log.Printf("mailjet secrets not found; not sending email")
	}
	err = notifier.Init(opts...)
	if err != nil {
		log.Fatalf("could not set up email notifier: %v", err)
	}

	setupDispatcher(ctx)

	scheduler = cron.New()
	_, err = scheduler.AddFunc(announcementSchedule, func() {
		_, err := recomputer.RefreshAnnouncement(context.Background())
		if err != nil {
			log.Printf("could not refresh announcement: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("could not schedule announcement refresh: %v", err)
	}
	scheduler.Start()
}

// sessionKey returns the cookie signing key from the environment, or
// a random per-instance key when unset. A random key invalidates
// sessions across restarts, which is acceptable in standalone mode.
func sessionKey() []byte {
	v := os.Getenv("SESSION_KEY")
	if v != "" {
		return []byte(v)
	}
	if !standalone {
		log.Printf("SESSION_KEY not set; sessions will not survive restarts")
	}
	return securecookie.GenerateRandomKey(32)
}

// setupDispatcher registers the background task handlers and starts
// the dispatcher workers.
func setupDispatcher(ctx context.Context) {
	dispatcher = dispatch.NewDispatcher()

	dispatcher.Register("send_confirmation_email", func(ctx context.Context, t dispatch.Task) error {
		return notifier.Send(ctx, t.Params["email"], "conference",
			"You have created a new conference!\n\nName: "+t.Params["name"])
	})

	dispatcher.Register("send_session_confirmation_email", func(ctx context.Context, t dispatch.Task) error {
		return notifier.Send(ctx, t.Params["email"], "session",
			"You have created a new session!\n\nName: "+t.Params["name"])
	})

	dispatcher.Register("check_featured_speaker", func(ctx context.Context, t dispatch.Task) error {
		return recomputer.CheckFeaturedSpeaker(ctx, t.Params["conference"], t.Params["speaker"])
	})

	dispatcher.Start(ctx)
}

// logRequest logs a request if in debug mode and standalone mode.
// It does nothing in App Engine mode as App Engine logs requests
// automatically.
func logRequest(r *http.Request) {
	if !(debug || standalone) {
		return
	}
	if r.URL.RawQuery == "" {
		log.Println(r.URL.Path)
		return
	}
	log.Println(r.URL.Path + "?" + r.URL.RawQuery)
}
