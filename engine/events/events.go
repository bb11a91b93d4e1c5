// Package events announces served recommendations on NATS so downstream
// consumers (analytics, kitchen dashboards) can follow demand.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yangon-eats/menu-recommender/engine/domain"
	"github.com/yangon-eats/menu-recommender/pkg/fn"
	"github.com/yangon-eats/menu-recommender/pkg/natsutil"
)

// DefaultSubject is where RecommendationServed events go unless configured.
const DefaultSubject = "menu.recommendations.served"

// RecommendationServed records one successful Recommend call.
type RecommendationServed struct {
	ID          string    `json:"id"`
	Item        string    `json:"item"`
	Condition   string    `json:"condition"`
	Temperature float64   `json:"temperature"`
	Similar     []string  `json:"similar"`
	Weather     []string  `json:"weather"`
	ServedAt    time.Time `json:"served_at"`
}

// NewRecommendationServed builds the event for rec with a fresh id.
func NewRecommendationServed(item string, rec *domain.Recommendation, at time.Time) RecommendationServed {
	return RecommendationServed{
		ID:          uuid.NewString(),
		Item:        item,
		Condition:   rec.Weather,
		Temperature: rec.Temperature,
		Similar:     fn.Map(rec.ClickedItem, func(s domain.SimilarItem) string { return s.RecipeName }),
		Weather:     fn.Map(rec.WeatherItem, func(w domain.WeatherItem) string { return w.RecipeName }),
		ServedAt:    at.UTC(),
	}
}

// NATSPublisher publishes events as JSON on one subject.
type NATSPublisher struct {
	conn    natsutil.MsgPublisher
	subject string
}

// NewNATSPublisher wraps conn. An empty subject means DefaultSubject.
func NewNATSPublisher(conn natsutil.MsgPublisher, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

// Subject is the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishServed sends ev.
func (p *NATSPublisher) PublishServed(ctx context.Context, ev RecommendationServed) error {
	return natsutil.Publish(ctx, p.conn, p.subject, ev)
}
