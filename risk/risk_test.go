package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (X11; Linux x86_64; rv:121.0) Gecko/20100101 Firefox/121.0"

func TestScoreBaseline(t *testing.T) {
	tests := []struct {
		action Action
		want   int
	}{
		{ActionLoginFailed, 40},
		{ActionAccountLocked, 40},
		{ActionPasswordChanged, 40},
		{ActionLoginSuccess, 20},
		{ActionLogout, 20},
		{ActionRegister, 10},
		{ActionTokenRefresh, 10},
		{Action("something_new"), 10},
	}
	for _, tt := range tests {
		t.Run(string(tt.action), func(t *testing.T) {
			got := Score(Input{Action: tt.action, UserAgent: browserUA})
			assert.Equal(t, tt.want, got.Score)
		})
	}
}

func TestScorePenalties(t *testing.T) {
	got := Score(Input{Action: ActionLoginFailed, StatusCode: 401, UserAgent: browserUA})
	assert.Equal(t, 60, got.Score)
	assert.Equal(t, SeverityHigh, got.Severity)
	assert.False(t, got.Flagged)

	got = Score(Input{Action: ActionLoginFailed, StatusCode: 401, UnusualLocation: true, UserAgent: browserUA})
	assert.Equal(t, 90, got.Score)
	assert.True(t, got.Flagged)
	assert.Equal(t, SeverityCritical, got.Severity)

	got = Score(Input{Action: ActionLoginSuccess, UserAgent: "curl/8.4.0"})
	assert.Equal(t, 45, got.Score)

	got = Score(Input{Action: ActionLoginFailed, StatusCode: 423, UnusualLocation: true, UserAgent: "python-requests/2.31"})
	assert.Equal(t, 100, got.Score, "score must be capped")
	assert.True(t, got.Flagged)
}

func TestScoreBoundaryFlag(t *testing.T) {
	// 40 + 20 + 25 = 85 crosses the threshold; 20 + 30 + 25 = 75 does not.
	assert.True(t, Score(Input{Action: ActionLoginFailed, StatusCode: 400, UserAgent: ""}).Flagged)
	assert.False(t, Score(Input{Action: ActionLoginSuccess, UnusualLocation: true, UserAgent: "Wget/1.21"}).Flagged)
}

// Every combination of penalties over every known action: adding a penalty
// never lowers the score, and the flag tracks the threshold exactly.
func TestScoreMonotonicExhaustive(t *testing.T) {
	actions := make([]Action, 0, len(categoryByAction)+1)
	for a := range categoryByAction {
		actions = append(actions, a)
	}
	actions = append(actions, Action("unknown"))

	statuses := []int{0, 200, 400, 500}
	agents := []string{browserUA, "curl/8.0"}

	for _, a := range actions {
		for _, status := range statuses {
			for _, unusual := range []bool{false, true} {
				for _, ua := range agents {
					in := Input{Action: a, StatusCode: status, UnusualLocation: unusual, UserAgent: ua}
					got := Score(in)

					require.GreaterOrEqual(t, got.Score, 0)
					require.LessOrEqual(t, got.Score, 100)
					require.Equal(t, got.Score >= FlagThreshold, got.Flagged, "%+v", in)

					withStatus := in
					withStatus.StatusCode = 401
					require.GreaterOrEqual(t, Score(withStatus).Score, got.Score, "%+v", in)

					withGeo := in
					withGeo.UnusualLocation = true
					require.GreaterOrEqual(t, Score(withGeo).Score, got.Score, "%+v", in)

					withBot := in
					withBot.UserAgent = "scrapy/2.11"
					require.GreaterOrEqual(t, Score(withBot).Score, got.Score, "%+v", in)
				}
			}
		}
	}
}

func TestCategoryOf(t *testing.T) {
	assert.Equal(t, CategoryAuth, CategoryOf(ActionLoginSuccess))
	assert.Equal(t, CategorySecurity, CategoryOf(ActionTwoFactorFailed))
	assert.Equal(t, CategoryUser, CategoryOf(ActionEmailVerified))
	assert.Equal(t, CategoryAdmin, CategoryOf(ActionAuditReviewed))
	assert.Equal(t, CategorySystem, CategoryOf(Action("cron_tick")))
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, SeverityLow, SeverityFor(10))
	assert.Equal(t, SeverityMedium, SeverityFor(30))
	assert.Equal(t, SeverityHigh, SeverityFor(60))
	assert.Equal(t, SeverityCritical, SeverityFor(80))
}
