package recommend

import (
	"strings"
	"time"

	"jobradar/pkg/models"
)

// Profile captures what a user is looking for. Empty facets are skipped and
// the remaining weights renormalized.
type Profile struct {
	Skills        []string `json:"skills"`
	TitleKeywords []string `json:"title_keywords"`
	Locations     []string `json:"locations"`
	RemoteOnly    bool     `json:"remote_only"`
	NeedsVisa     bool     `json:"needs_visa"`
}

// Breakdown exposes the per-factor contributions behind a score.
type Breakdown struct {
	Skills   float64 `json:"skills"`
	Title    float64 `json:"title"`
	Location float64 `json:"location"`
	Visa     float64 `json:"visa"`
	Recency  float64 `json:"recency"`
}

// Weights for each scoring factor. They sum to 1; factors a profile leaves
// empty are dropped and the rest renormalized.
const (
	skillsWeight   = 0.40
	titleWeight    = 0.25
	locationWeight = 0.15
	visaWeight     = 0.10
	recencyWeight  = 0.10
)

// Score rates how well a posting matches a profile, in [0,1].
func Score(job *models.Job, profile Profile) (float64, Breakdown) {
	var breakdown Breakdown
	score := 0.0
	weightUsed := 0.0

	if len(profile.Skills) > 0 {
		breakdown.Skills = matchSkills(job, profile.Skills)
		score += breakdown.Skills * skillsWeight
		weightUsed += skillsWeight
	}

	if len(profile.TitleKeywords) > 0 {
		breakdown.Title = matchTitle(job, profile.TitleKeywords)
		score += breakdown.Title * titleWeight
		weightUsed += titleWeight
	}

	breakdown.Location = matchLocation(job, profile)
	score += breakdown.Location * locationWeight
	weightUsed += locationWeight

	if profile.NeedsVisa {
		if job.VisaSponsorship {
			breakdown.Visa = 1.0
		}
		score += breakdown.Visa * visaWeight
		weightUsed += visaWeight
	}

	breakdown.Recency = matchRecency(job)
	score += breakdown.Recency * recencyWeight
	weightUsed += recencyWeight

	if weightUsed > 0 && weightUsed < 1.0 {
		score = score / weightUsed
	}
	return clamp(score), breakdown
}

// matchSkills is the fraction of profile skills the posting mentions.
func matchSkills(job *models.Job, skills []string) float64 {
	text := job.SearchText()
	if text == "" {
		return 0.5 // neutral when the source gave no description
	}

	matched := 0
	for _, skill := range skills {
		if strings.Contains(text, strings.ToLower(skill)) {
			matched++
		}
	}
	return float64(matched) / float64(len(skills))
}

// matchTitle is the fraction of desired title keywords found in the title.
func matchTitle(job *models.Job, keywords []string) float64 {
	title := strings.ToLower(job.Title)
	matched := 0
	for _, kw := range keywords {
		if strings.Contains(title, strings.ToLower(kw)) {
			matched++
		}
	}
	return float64(matched) / float64(len(keywords))
}

func matchLocation(job *models.Job, profile Profile) float64 {
	if profile.RemoteOnly {
		if job.Remote {
			return 1.0
		}
		return 0.0
	}

	if len(profile.Locations) == 0 {
		return 0.5 // no preference
	}

	location := strings.ToLower(job.Location)
	for _, want := range profile.Locations {
		if strings.Contains(location, strings.ToLower(want)) {
			return 1.0
		}
	}
	if job.Remote {
		return 0.7 // remote works from anywhere, but is not the stated preference
	}
	return 0.0
}

// matchRecency decays linearly from 1.0 (posted today) to 0 at 60 days.
func matchRecency(job *models.Job) float64 {
	posted := job.PostedAt
	if posted == nil {
		return 0.5
	}

	age := time.Since(*posted)
	if age < 0 {
		return 1.0
	}
	const horizon = 60 * 24 * time.Hour
	if age >= horizon {
		return 0.0
	}
	return 1.0 - float64(age)/float64(horizon)
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
