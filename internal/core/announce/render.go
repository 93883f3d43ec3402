// Package announce turns alert records into spoken sentences for a speech sink.
package announce

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/schoolmaps/internal/core/domain"
)

const (
	// LanguageZhTW is the only supported announcement language.
	LanguageZhTW = "zh-TW"
	// DefaultRate is the speech rate handed to the synthesizer.
	DefaultRate = 0.5
)

// ErrUnsupportedLanguage is returned for any language other than zh-TW.
var ErrUnsupportedLanguage = errors.New("unsupported announcement language")

// Renderer formats alert records into an Announcement.
type Renderer struct {
	language string
	rate     float64
	now      func() time.Time
}

// NewRenderer returns a renderer for language; rate <= 0 selects DefaultRate.
func NewRenderer(language string, rate float64) (*Renderer, error) {
	if language != LanguageZhTW {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, language)
	}
	if rate <= 0 {
		rate = DefaultRate
	}
	return &Renderer{language: language, rate: rate, now: time.Now}, nil
}

// Sentence renders one record, e.g. "警車位於您的東南方約85公尺".
// The distance is truncated toward zero; non-finite distances render as 0.
func Sentence(rec domain.AlertRecord) string {
	meters := int64(0)
	if !math.IsNaN(rec.DistanceMeters) && !math.IsInf(rec.DistanceMeters, 0) {
		meters = int64(rec.DistanceMeters)
	}
	return fmt.Sprintf("%s位於您的%s方約%d公尺", rec.Name, rec.Direction.Label(), meters)
}

// Text concatenates the sentences of all records in order.
func Text(records []domain.AlertRecord) string {
	var b strings.Builder
	for _, rec := range records {
		b.WriteString(Sentence(rec))
	}
	return b.String()
}

// Render builds an announcement for deviceID. ok is false when there is
// nothing to say.
func (r *Renderer) Render(deviceID string, records []domain.AlertRecord) (ann domain.Announcement, ok bool) {
	if len(records) == 0 {
		return domain.Announcement{}, false
	}
	return domain.Announcement{
		ID:        uuid.NewString(),
		DeviceID:  deviceID,
		Language:  r.language,
		Rate:      r.rate,
		Text:      Text(records),
		Alerts:    records,
		CreatedAt: r.now(),
	}, true
}
