package recommend

import (
	"context"
	"fmt"
	"sort"

	"jobradar/pkg/models"
)

// JobLister is the slice of the store the recommender needs.
type JobLister interface {
	List(ctx context.Context, filter models.JobFilter, limit int) ([]models.Job, error)
}

// Recommendation pairs a posting with its match score.
type Recommendation struct {
	Job       models.Job `json:"job"`
	Score     float64    `json:"score"`
	Breakdown Breakdown  `json:"breakdown"`
}

// Recommender scores active postings against a profile.
type Recommender struct {
	store JobLister
}

// NewRecommender creates a recommender over the given store.
func NewRecommender(store JobLister) *Recommender {
	return &Recommender{store: store}
}

// candidatePool caps how many active postings are scored per request.
const candidatePool = 500

// Recommend returns the top postings for the profile, best first.
func (r *Recommender) Recommend(ctx context.Context, profile Profile, limit int) ([]Recommendation, error) {
	if limit <= 0 {
		limit = 20
	}

	active := true
	filter := models.JobFilter{IsActive: &active}
	if profile.NeedsVisa {
		filter.VisaOnly = true
	}
	if profile.RemoteOnly {
		remote := true
		filter.Remote = &remote
	}

	candidates, err := r.store.List(ctx, filter, candidatePool)
	if err != nil {
		return nil, fmt.Errorf("loading candidate jobs: %w", err)
	}

	recs := make([]Recommendation, 0, len(candidates))
	for i := range candidates {
		job := candidates[i]
		score, breakdown := Score(&job, profile)
		if score <= 0 {
			continue
		}
		job.Relevance = score
		recs = append(recs, Recommendation{
			Job:       job,
			Score:     score,
			Breakdown: breakdown,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Score > recs[j].Score
	})

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}
