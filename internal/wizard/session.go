package wizard

import "strings"

// Session is the state of one browser session. Slots are nil until their
// stage has answered once; they keep the last answer until overwritten.
type Session struct {
	UserName string `json:"user_name"`

	Ingredients   *string `json:"ingredients,omitempty"`
	Substitutions *string `json:"substitutions,omitempty"`
	Instructions  *string `json:"instructions,omitempty"`
	Saved         bool    `json:"saved"`

	// Recipes are the names of the user's saved recipes, in store order
	// followed by the ones saved in this session.
	Recipes []string `json:"recipes"`

	Form Form `json:"form"`
}

// Form holds the last submitted free-text fields so they can be shown again.
type Form struct {
	RecipeName        string `json:"recipe_name"`
	MissingIngredient string `json:"missing_ingredient"`
	FinalIngredients  string `json:"final_ingredients"`
}

// NewSession returns an empty session for userName.
func NewSession(userName string) *Session {
	return &Session{UserName: userName, Recipes: []string{}}
}

// ParseIngredients splits a comma separated list, trimming entries and
// dropping empty ones.
func ParseIngredients(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stringPtr(s string) *string {
	return &s
}
