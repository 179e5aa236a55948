package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectContentType(t *testing.T) {
	cases := []struct {
		content string
		want    string
	}{
		{"https://example.com/path", "url"},
		{"http://localhost:8080", "url"},
		{"user@example.com", "email"},
		{"42", "numeric"},
		{"3.14159", "numeric"},
		{"hello world", "text"},
		{"not an email @", "text"},
		{"", "text"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectContentType(tc.content), tc.content)
	}
}

func TestHashContentStable(t *testing.T) {
	a := HashContent("clipboard payload")
	b := HashContent("clipboard payload")
	c := HashContent("different payload")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 32)
}

func TestNormalizeTags(t *testing.T) {
	got := NormalizeTags([]string{" work ", "Work", "", "ideas", "work"})
	assert.Equal(t, []string{"Work", "ideas", "work"}, got)

	assert.NotNil(t, NormalizeTags(nil))
	assert.Empty(t, NormalizeTags(nil))
}

func TestParseTagsColumn(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"null", nil},
		{`[]`, nil},
		{`["work","ideas"]`, []string{"work", "ideas"}},
		{`"[\"work\"]"`, []string{"work"}},
		{`work`, []string{"work"}},
	}
	for _, tc := range cases {
		got := ParseTagsColumn(tc.raw)
		if tc.want == nil {
			assert.Empty(t, got, tc.raw)
			continue
		}
		assert.Equal(t, tc.want, got, tc.raw)
	}
}

func TestParseCadence(t *testing.T) {
	cases := []struct {
		in   string
		want PurgeCadence
	}{
		{"never", CadenceNever},
		{"Never", CadenceNever},
		{"every_24_hours", Cadence24Hours},
		{"Every 24 hours", Cadence24Hours},
		{"24h", Cadence24Hours},
		{"Every 3 days", Cadence3Days},
		{"every_week", CadenceWeek},
		{"weekly", CadenceWeek},
		{"Every month", CadenceMonth},
	}
	for _, tc := range cases {
		got, err := ParseCadence(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	_, err := ParseCadence("fortnightly")
	assert.Error(t, err)
}

func TestCadenceDisplayRoundTrip(t *testing.T) {
	for _, c := range []PurgeCadence{CadenceNever, Cadence24Hours, Cadence3Days, CadenceWeek, CadenceMonth} {
		parsed, err := ParseCadence(c.Display())
		require.NoError(t, err)
		assert.Equal(t, c, parsed)
	}
}

func TestCadenceInterval(t *testing.T) {
	d, ok := Cadence3Days.Interval()
	require.True(t, ok)
	assert.Equal(t, 72*time.Hour, d)

	_, ok = CadenceNever.Interval()
	assert.False(t, ok)
}

func TestTagValidation(t *testing.T) {
	assert.True(t, ValidTagName("work"))
	assert.False(t, ValidTagName(""))
	assert.False(t, ValidTagName("   "))

	assert.True(t, ValidTagColor("#A1B2C3"))
	assert.True(t, ValidTagColor("A1B2C3"))
	assert.False(t, ValidTagColor("#GGGGGG"))
}
