// Package ics renders the calendar attachment for a confirmed booking. The
// output is a minimal single-event VCALENDAR; rendering times in UTC keeps
// the file unambiguous for every calendar client.
package ics

import (
	"strings"
	"time"
)

const stampLayout = "20060102T150405Z"

type Event struct {
	UID     string
	Summary string

	StartAt time.Time
	EndAt   time.Time

	// Timezone is the business zone the appointment was booked in; it is
	// carried as a non-standard hint for display purposes.
	Timezone    string
	Description string
}

// Render produces the ICS document. Lines use CRLF endings per RFC 5545.
func Render(ev Event, now time.Time) string {
	var b strings.Builder
	line := func(s string) {
		b.WriteString(s)
		b.WriteString("\r\n")
	}

	line("BEGIN:VCALENDAR")
	line("VERSION:2.0")
	line("PRODID:-//NeuronIA//Booking//EN")
	line("CALSCALE:GREGORIAN")
	line("METHOD:PUBLISH")
	line("BEGIN:VEVENT")
	line("UID:" + ev.UID)
	line("DTSTAMP:" + now.UTC().Format(stampLayout))
	line("DTSTART:" + ev.StartAt.UTC().Format(stampLayout))
	line("DTEND:" + ev.EndAt.UTC().Format(stampLayout))
	line("SUMMARY:" + escape(ev.Summary))
	if ev.Description != "" {
		line("DESCRIPTION:" + escape(ev.Description))
	}
	if ev.Timezone != "" {
		line("X-BUSINESS-TIMEZONE:" + ev.Timezone)
	}
	line("END:VEVENT")
	line("END:VCALENDAR")
	return b.String()
}

func escape(s string) string {
	r := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\n", "\\n",
	)
	return r.Replace(s)
}
