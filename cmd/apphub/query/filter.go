// Package query builds normalized listing criteria from raw request
// parameters and matches apps against them.
package query

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

// Criteria is a comparison-ready listing filter. Zero values mean
// "no constraint" on that dimension.
type Criteria struct {
	// AppType filters by declared type when set
	AppType models.AppType
	// PlatformVersion keeps apps whose MinPlatformVersion is <= this value
	PlatformVersion string
}

// Build normalizes the optional raw type and platform-version inputs.
// Empty inputs mean no constraint; an unparseable type is an
// errs.ErrInvalidArgument, never silently ignored.
func Build(rawType, rawPlatformVersion string) (Criteria, error) {
	c := Criteria{
		PlatformVersion: strings.TrimSpace(rawPlatformVersion),
	}

	if t := strings.TrimSpace(rawType); t != "" {
		appType, err := models.ParseAppType(t)
		if err != nil {
			return Criteria{}, fmt.Errorf("%w: %v", errs.ErrInvalidArgument, err)
		}
		c.AppType = appType
	}

	return c, nil
}

// IsEmpty reports whether the criteria constrain nothing
func (c Criteria) IsEmpty() bool {
	return c.AppType == "" && c.PlatformVersion == ""
}

// Matches reports whether app satisfies every constrained dimension
func (c Criteria) Matches(app *models.App) bool {
	if c.AppType != "" && app.AppType != c.AppType {
		return false
	}

	if c.PlatformVersion != "" && app.MinPlatformVersion != "" {
		// The app must run on the requested platform version
		if CompareVersions(app.MinPlatformVersion, c.PlatformVersion) > 0 {
			return false
		}
	}

	return true
}

// CompareVersions compares two dotted numeric version strings
// ("2.30" vs "2.29.1"). Returns -1, 0 or 1. Non-numeric segments compare
// lexicographically, matching how platform versions are written in practice.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}

	for i := 0; i < n; i++ {
		sa, sb := "0", "0"
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}

		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)

		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
		}
	}

	return 0
}
