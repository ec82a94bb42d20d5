// Package prompts builds the free-text messages sent to the generation
// gateway for each wizard stage.
package prompts

import (
	"fmt"
	"strings"
)

const quantityHint = "수량에서 엑체는 ml도 함께 알려주세요."

// Ingredients asks for the ingredient list of a dish on a single line.
func Ingredients(recipeName string) string {
	return fmt.Sprintf(
		"'%s'을(를) 만들기 위해 필요한 재료 목록을 알려주세요. %s 대답 형식=재료 목록 : 재료이름(필요한 양), 재료이름(필요한 양), 한줄로 출력",
		recipeName, quantityHint,
	)
}

// Substitute asks what can replace one missing ingredient.
func Substitute(recipeName, missing string) string {
	lines := []string{
		fmt.Sprintf("%s을 만들기 위한 재료 중 %s'이(가) 없을 경우 대체 가능한 재료나 맛을 낼 수 있는 재료을 알려주세요.", recipeName, missing),
		quantityHint,
		"대답 형식= 대체 재료 목록, 원래 재료 목록",
	}
	return strings.Join(lines, "\n")
}

// Instructions asks for cooking steps using exactly the final ingredients,
// passed through as the user typed them.
func Instructions(recipeName, finalIngredients string) string {
	return fmt.Sprintf(
		"이 재료들로 만들 수 있는 %s 조리 방법을 간단하고 명료하게 제공해 주세요: %s.",
		recipeName, finalIngredients,
	)
}
