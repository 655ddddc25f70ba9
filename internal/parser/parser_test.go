package parser

import (
	"context"
	"testing"

	"TournamentSync/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<html>
<head><title>Summer Classic | Poker Room</title></head>
<body>
<h1>Summer Classic <span>Event #7</span> Day 1A</h1>
<span class="cw-badge cw-bg-success">Running</span>
<p>Late Registration until level 9</p>
<p>Buy-in: 1,100</p>
</body>
</html>`

func TestParse_Fields(t *testing.T) {
	p := NewRegexParser(logrus.New())
	g, err := p.Parse(context.Background(), []byte(samplePage), "https://tournaments.example.com/tournament/4217")
	require.NoError(t, err)

	assert.Equal(t, "Summer Classic Event #7 Day 1A", g.Name)
	assert.Equal(t, model.GameStatusRunning, g.Status)
	assert.Equal(t, model.RegistrationLate, g.RegistrationStatus)
	assert.EqualValues(t, 4217, g.TournamentID)
	assert.EqualValues(t, 1100, g.BuyIn)
	assert.NotEmpty(t, g.ID)
	assert.Equal(t, "https://tournaments.example.com/tournament/4217", g.SourceURL)
}

func TestParse_NameFallsBackToTitle(t *testing.T) {
	p := NewRegexParser(logrus.New())
	g, err := p.Parse(context.Background(), []byte(`<html><head><title>Midnight Madness</title></head><body></body></html>`), "https://x/t?id=9")
	require.NoError(t, err)
	assert.Equal(t, "Midnight Madness", g.Name)
	assert.EqualValues(t, 9, g.TournamentID)
}

func TestParse_NotAGamePage(t *testing.T) {
	p := NewRegexParser(logrus.New())
	_, err := p.Parse(context.Background(), []byte(`{"error":"rate limited"}`), "https://x/t/1")
	assert.Error(t, err)
}

func TestExtractStatuses(t *testing.T) {
	cases := []struct {
		name string
		html string
		want model.GameStatus
		reg  model.RegistrationStatus
	}{
		{
			name: "进行中带后期报名",
			html: `<span class="cw-badge">Running</span> late registration`,
			want: model.GameStatusRunning,
			reg:  model.RegistrationLate,
		},
		{
			name: "停钟",
			html: `<span class="cw-badge cw-bg-info">Clock  Stopped</span>`,
			want: model.GameStatusClockStopped,
			reg:  model.RegistrationUnknown,
		},
		{
			name: "已结束报名关闭",
			html: `<span class="cw-badge">Ended</span> Registration closed`,
			want: model.GameStatusFinished,
			reg:  model.RegistrationClosed,
		},
		{
			name: "报名开放",
			html: `<span class="cw-badge">Registering</span> Registration open`,
			want: model.GameStatusRegistering,
			reg:  model.RegistrationOpen,
		},
		{
			name: "未识别徽章",
			html: `<span class="cw-badge">On Fire</span>`,
			want: model.GameStatusUnknown,
			reg:  model.RegistrationUnknown,
		},
		{
			name: "无徽章",
			html: `<p>plain page</p>`,
			want: model.GameStatusUnknown,
			reg:  model.RegistrationUnknown,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, reg := ExtractStatuses([]byte(tc.html))
			assert.Equal(t, tc.want, status)
			assert.Equal(t, tc.reg, reg)
		})
	}
}
