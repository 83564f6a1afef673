// Package records maps help records, teams and provinces between their
// application shape and their store rows, and issues the store calls.
package records

import (
	"time"

	"github.com/Daskott/relief/server/logger"
	"github.com/Daskott/relief/store"
)

var logg = logger.NewLogger()

// Records groups the per-entity services sharing one store.
type Records struct {
	HelpRecords *HelpService
	Teams       *TeamService
	Provinces   *ProvinceService
}

func New(s store.Store, phone PhoneFormatter) *Records {
	return &Records{
		HelpRecords: NewHelpService(s, phone),
		Teams:       NewTeamService(s, phone),
		Provinces:   NewProvinceService(s),
	}
}

type clock func() time.Time

func utcNow() time.Time {
	return time.Now().UTC()
}
