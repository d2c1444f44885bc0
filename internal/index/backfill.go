package index

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/attnmarkets/attnd/internal/domain"
)

// Attention types shape the synthetic backfill curve for a topic.
const (
	attnStartup   = "startup"
	attnProduct   = "product"
	attnPerson    = "person"
	attnEvent     = "event"
	attnNarrative = "narrative"
	attnDefault   = "default"
)

var attnPatterns = []struct {
	kind string
	re   *regexp.Regexp
}{
	{attnStartup, regexp.MustCompile(`\b(startup|funding|launch|vc|series [a-z]|y combinator)\b`)},
	{attnProduct, regexp.MustCompile(`\b(product|release|review|app|software|saas)\b`)},
	{attnPerson, regexp.MustCompile(`\b(ceo|founder|influencer|politician|person)\b`)},
	{attnEvent, regexp.MustCompile(`\b(event|conference|summit|election|game)\b`)},
	{attnNarrative, regexp.MustCompile(`\b(narrative|meme|trend|story|discourse)\b`)},
}

func classifyAttentionType(name, description string) string {
	text := strings.ToLower(name + " " + description)
	for _, p := range attnPatterns {
		if p.re.MatchString(text) {
			return p.kind
		}
	}
	return attnDefault
}

// SyntheticBackfill generates a deterministic monthly series for the chart's
// long lookback when no holistic estimator is available: baseline 100 at the
// topic's synthetic start, ending near the current index value, with a shape
// chosen by attention type. All points are strictly before now and bounded
// [70, 130].
func SyntheticBackfill(eventID, name, description string, currentIndex float64, now time.Time) []domain.IndexPoint {
	seed := syntheticSeed(eventID)
	kind := classifyAttentionType(name, description)

	// Some topics "start" later: 4, 5, or 6 months back.
	monthsBack := 6 - int(seed%3)
	start := now.UTC().AddDate(0, 0, -monthsBack*30)

	var points []domain.IndexPoint
	for i := 0; i <= monthsBack; i++ {
		t := start.AddDate(0, 0, i*30)
		if !t.Before(now.UTC()) {
			break
		}

		progress := float64(i) / math.Max(float64(monthsBack), 1)
		var value float64
		switch kind {
		case attnStartup:
			wave := 8 * math.Sin(progress*math.Pi*2+float64(seed%10))
			value = 100 + progress*(currentIndex-100)*0.7 + wave
		case attnNarrative:
			s := 1 / (1 + math.Exp(-8*(progress-0.5)))
			value = 100 + s*(currentIndex-100)*0.9
		case attnEvent:
			spike := 15 * math.Exp(-math.Pow(progress-0.5, 2)*20)
			value = 100 + progress*(currentIndex-100)*0.5 + spike
		default:
			noise := float64((seed+uint64(i)*31)%100)/100.0*4 - 2
			value = 100 + progress*(currentIndex-100) + noise
		}

		value = math.Max(70.0, math.Min(130.0, value))
		points = append(points, domain.IndexPoint{T: t, Value: round2(value)})
	}
	return points
}
