package profile

import (
	"sort"
	"strings"
	"time"
)

// Profile is a contact record with a bio and a comma-separated skills list.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Bio       string    `json:"bio"`
	Skills    string    `json:"skills"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest is the body of POST /profile.
type CreateRequest struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
	Bio    string `json:"bio"`
	Skills string `json:"skills"`
}

// UpdateRequest is the body of PUT /profile/{id}. Nil fields are left
// untouched; email cannot be changed.
type UpdateRequest struct {
	Name   *string `json:"name,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Bio    *string `json:"bio,omitempty"`
	Skills *string `json:"skills,omitempty"`
}

// SkillCount is one row of the top-skills ranking.
type SkillCount struct {
	Skill string `json:"skill"`
	Count int    `json:"count"`
}

// ErrorBody is the JSON shape of every non-2xx API response.
type ErrorBody struct {
	Detail string `json:"detail"`
}

// SplitSkills splits a comma-separated skills string into trimmed tokens,
// skipping empty ones. Casing and duplicates are preserved.
func SplitSkills(skills string) []string {
	var out []string
	for _, s := range strings.Split(skills, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

// TopSkills counts skill occurrences across profiles and returns at most
// limit entries ordered by count descending. Ties keep first-seen order.
func TopSkills(profiles []Profile, limit int) []SkillCount {
	counts := make(map[string]int)
	var order []string
	for _, p := range profiles {
		for _, s := range SplitSkills(p.Skills) {
			if _, seen := counts[s]; !seen {
				order = append(order, s)
			}
			counts[s]++
		}
	}

	result := make([]SkillCount, len(order))
	for i, s := range order {
		result[i] = SkillCount{Skill: s, Count: counts[s]}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if limit >= 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}
