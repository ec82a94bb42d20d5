// Package idgen produces the identifiers attached to saved recipes.
package idgen

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// MaxRecipeID is the upper bound of the recipe_id range.
const MaxRecipeID = 255

// RecipeID returns a random number in [1, MaxRecipeID]. Collisions are
// expected; nothing looks records up by it.
func RecipeID() int {
	return rand.IntN(MaxRecipeID) + 1
}

// RecordID returns the table sort key for a new record, unique per save.
func RecordID() string {
	return uuid.NewString()
}
