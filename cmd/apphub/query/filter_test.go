package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhis2/dhis2-apptore/cmd/apphub/models"
	"github.com/dhis2/dhis2-apptore/common/errs"
)

func TestBuild(t *testing.T) {
	c, err := Build("", "")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	c, err = Build("app", " 2.38 ")
	require.NoError(t, err)
	assert.Equal(t, models.TypeApp, c.AppType)
	assert.Equal(t, "2.38", c.PlatformVersion)
	assert.False(t, c.IsEmpty())

	_, err = Build("SPREADSHEET", "")
	assert.ErrorIs(t, err, errs.ErrInvalidArgument)
}

func TestMatches(t *testing.T) {
	app := &models.App{
		AppType:            models.TypeDashboardWidget,
		MinPlatformVersion: "2.35",
	}

	cases := []struct {
		name     string
		criteria Criteria
		want     bool
	}{
		{"empty criteria", Criteria{}, true},
		{"type match", Criteria{AppType: models.TypeDashboardWidget}, true},
		{"type mismatch", Criteria{AppType: models.TypeApp}, false},
		{"platform above floor", Criteria{PlatformVersion: "2.38"}, true},
		{"platform at floor", Criteria{PlatformVersion: "2.35"}, true},
		{"platform below floor", Criteria{PlatformVersion: "2.33"}, false},
		{"both dimensions", Criteria{AppType: models.TypeDashboardWidget, PlatformVersion: "2.40"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.criteria.Matches(app))
		})
	}
}

func TestMatches_NoVersionFloorMeansCompatible(t *testing.T) {
	app := &models.App{AppType: models.TypeApp}

	assert.True(t, Criteria{PlatformVersion: "2.30"}.Matches(app))
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"2.35", "2.35", 0},
		{"2.35", "2.36", -1},
		{"2.36", "2.35", 1},
		{"2.35.1", "2.35", 1},
		{"2.35", "2.35.0", 0},
		{"2.9", "2.10", -1},
		{"2.35-rc1", "2.35-rc2", -1},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CompareVersions(tc.a, tc.b), "%s vs %s", tc.a, tc.b)
	}
}
