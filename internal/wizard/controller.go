// Package wizard sequences the recipe conversation: ingredients, an optional
// substitute, instructions, then save. Every action acts on an explicit
// *Session and makes at most one blocking remote call.
package wizard

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/idgen"
	"github.com/socialchef/recipewizard/internal/metrics"
	"github.com/socialchef/recipewizard/internal/services/gateway"
	"github.com/socialchef/recipewizard/internal/services/prompts"
	"github.com/socialchef/recipewizard/internal/services/render"
	"github.com/socialchef/recipewizard/internal/services/store"
	"github.com/socialchef/recipewizard/internal/telemetry"
)

// Stage names, used for logs and metrics.
const (
	StageIngredients  = "ingredients"
	StageSubstitute   = "substitute"
	StageInstructions = "instructions"
	StageSave         = "save"
	StageLookup       = "lookup"
)

// RecipeStore persists and queries recipe records.
type RecipeStore interface {
	Put(ctx context.Context, rec store.Record) error
	ScanByUser(ctx context.Context, userName string) ([]store.Record, error)
	FindRecipe(ctx context.Context, userName, recipeName string) (*store.Record, error)
}

// Renderer turns a recipe into document bytes.
type Renderer interface {
	Render(name string, ingredients []string, instructions string) ([]byte, error)
}

// Uploader stores a rendered document and reports its public URL.
type Uploader interface {
	Upload(ctx context.Context, fileName string, body []byte) (string, error)
	PublicURL(fileName string) string
}

type Controller struct {
	generator gateway.Generator
	store     RecipeStore
	renderer  Renderer
	uploader  Uploader
	validate  *validator.Validate
	now       func() time.Time
}

func NewController(generator gateway.Generator, recipeStore RecipeStore, renderer Renderer, uploader Uploader) *Controller {
	return &Controller{
		generator: generator,
		store:     recipeStore,
		renderer:  renderer,
		uploader:  uploader,
		validate:  validator.New(),
		now:       time.Now,
	}
}

type startInput struct {
	UserName string `validate:"required"`
}

type ingredientsInput struct {
	RecipeName string `validate:"required"`
}

type substituteInput struct {
	RecipeName string `validate:"required"`
	Missing    string `validate:"required"`
}

type instructionsInput struct {
	RecipeName  string   `validate:"required"`
	Ingredients []string `validate:"min=1"`
}

type saveInput struct {
	RecipeName   string   `validate:"required"`
	Ingredients  []string `validate:"min=1"`
	Instructions string   `validate:"required"`
}

// SaveResult describes a completed save.
type SaveResult struct {
	Record store.Record
	URL    string
}

// Start opens a session for userName. The known recipe list is filled by
// RefreshRecipes.
func (c *Controller) Start(userName string) (*Session, error) {
	userName = strings.TrimSpace(userName)
	if err := c.check(startInput{UserName: userName}, "이름을 입력해주세요", "USER_NAME_REQUIRED"); err != nil {
		return nil, err
	}
	return NewSession(userName), nil
}

// RefreshRecipes replaces the known recipe list with the names stored for
// the session's user. On failure the list is left as it was.
func (c *Controller) RefreshRecipes(ctx context.Context, s *Session) error {
	records, err := c.store.ScanByUser(ctx, s.UserName)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.RecipeName)
	}
	s.Recipes = names
	return nil
}

// FetchIngredients asks the gateway for the ingredient list of recipeName
// and stores the answer in the ingredients slot.
func (c *Controller) FetchIngredients(ctx context.Context, s *Session, recipeName string) (string, error) {
	recipeName = strings.TrimSpace(recipeName)
	if err := c.check(ingredientsInput{RecipeName: recipeName}, "요리명을 입력해주세요.", "RECIPE_NAME_REQUIRED"); err != nil {
		c.record(ctx, StageIngredients, err)
		return "", err
	}
	s.Form.RecipeName = recipeName

	answer, err := c.generate(ctx, StageIngredients, prompts.Ingredients(recipeName))
	if err != nil {
		return "", err
	}
	s.Ingredients = stringPtr(answer)
	return answer, nil
}

// FetchSubstitute asks what can replace missing in recipeName and stores the
// answer in the substitutions slot.
func (c *Controller) FetchSubstitute(ctx context.Context, s *Session, recipeName, missing string) (string, error) {
	recipeName = strings.TrimSpace(recipeName)
	missing = strings.TrimSpace(missing)
	in := substituteInput{RecipeName: recipeName, Missing: missing}
	if err := c.check(in, "요리명과 부족한 재료를 입력해주세요.", "SUBSTITUTE_INPUT_REQUIRED"); err != nil {
		c.record(ctx, StageSubstitute, err)
		return "", err
	}
	s.Form.RecipeName = recipeName
	s.Form.MissingIngredient = missing

	answer, err := c.generate(ctx, StageSubstitute, prompts.Substitute(recipeName, missing))
	if err != nil {
		return "", err
	}
	s.Substitutions = stringPtr(answer)
	return answer, nil
}

// FetchInstructions asks for cooking steps with the final ingredient list and
// stores the answer in the instructions slot.
func (c *Controller) FetchInstructions(ctx context.Context, s *Session, recipeName, finalIngredients string) (string, error) {
	recipeName = strings.TrimSpace(recipeName)
	finalIngredients = strings.TrimSpace(finalIngredients)
	in := instructionsInput{RecipeName: recipeName, Ingredients: ParseIngredients(finalIngredients)}
	if err := c.check(in, "최종 재료 목록을 입력해주세요.", "FINAL_INGREDIENTS_REQUIRED"); err != nil {
		c.record(ctx, StageInstructions, err)
		return "", err
	}
	s.Form.RecipeName = recipeName
	s.Form.FinalIngredients = finalIngredients

	answer, err := c.generate(ctx, StageInstructions, prompts.Instructions(recipeName, finalIngredients))
	if err != nil {
		return "", err
	}
	s.Instructions = stringPtr(answer)
	return answer, nil
}

// Save persists the recipe built so far: record, document, upload, then the
// name is added to the session's recipe list. Nothing is written unless the
// recipe name, final ingredients and instructions are all present.
func (c *Controller) Save(ctx context.Context, s *Session, recipeName, finalIngredients string) (_ *SaveResult, err error) {
	ctx, span := startSpan(ctx, StageSave)
	defer func() { endSpan(span, err) }()

	recipeName = strings.TrimSpace(recipeName)
	in := saveInput{
		RecipeName:  recipeName,
		Ingredients: ParseIngredients(finalIngredients),
	}
	if s.Instructions != nil {
		in.Instructions = strings.TrimSpace(*s.Instructions)
	}
	if err := c.check(in, "레시피 저장에 필요한 정보를 입력해주세요.", "SAVE_INPUT_REQUIRED"); err != nil {
		c.record(ctx, StageSave, err)
		return nil, err
	}
	s.Form.RecipeName = recipeName
	s.Form.FinalIngredients = strings.TrimSpace(finalIngredients)

	fileName := render.FileName(recipeName)
	rec := store.Record{
		UserName:     s.UserName,
		RecordID:     idgen.RecordID(),
		RecipeID:     idgen.RecipeID(),
		RecipeName:   recipeName,
		Ingredients:  in.Ingredients,
		Instructions: *s.Instructions,
		PDFURL:       c.uploader.PublicURL(fileName),
		CreatedAt:    c.now().UTC(),
	}

	if err := c.store.Put(ctx, rec); err != nil {
		c.record(ctx, StageSave, err)
		return nil, err
	}

	doc, err := c.renderer.Render(rec.RecipeName, rec.Ingredients, rec.Instructions)
	if err != nil {
		c.record(ctx, StageSave, err)
		return nil, err
	}

	url, err := c.uploader.Upload(ctx, fileName, doc)
	if err != nil {
		c.record(ctx, StageSave, err)
		return nil, err
	}

	s.Recipes = append(s.Recipes, recipeName)
	s.Saved = true

	c.record(ctx, StageSave, nil)
	metrics.RecipeSavesTotal.Add(ctx, 1)
	slog.InfoContext(ctx, "Recipe saved",
		"user_name", s.UserName,
		"recipe_name", recipeName,
		"recipe_id", rec.RecipeID,
		"url", url)

	return &SaveResult{Record: rec, URL: url}, nil
}

// Lookup loads a saved recipe of the session's user by name.
func (c *Controller) Lookup(ctx context.Context, s *Session, recipeName string) (_ *store.Record, err error) {
	ctx, span := startSpan(ctx, StageLookup)
	defer func() { endSpan(span, err) }()

	rec, err := c.store.FindRecipe(ctx, s.UserName, recipeName)
	c.record(ctx, StageLookup, err)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (c *Controller) generate(ctx context.Context, stage, prompt string) (_ string, err error) {
	ctx, span := startSpan(ctx, stage)
	defer func() { endSpan(span, err) }()

	slog.DebugContext(ctx, "Sending prompt to gateway", "stage", stage, "prompt_len", len(prompt))
	answer, err := c.generator.Generate(ctx, prompt)
	c.record(ctx, stage, err)
	if err != nil {
		slog.WarnContext(ctx, "Gateway call failed", "stage", stage, "error", err)
		return "", err
	}
	return answer, nil
}

// check runs struct validation and maps any failure onto one user-facing message.
func (c *Controller) check(in any, message, code string) error {
	if err := c.validate.Struct(in); err != nil {
		return apperrors.NewValidationError(message, code, "")
	}
	return nil
}

func (c *Controller) record(ctx context.Context, stage string, err error) {
	outcome := "success"
	if appErr, ok := apperrors.As(err); ok {
		outcome = strings.ToLower(string(appErr.Type))
	} else if err != nil {
		outcome = "error"
	}
	metrics.WizardStepsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func startSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	ctx, span := telemetry.Tracer("wizard").Start(ctx, "wizard:"+stage, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(attribute.String("wizard.stage", stage))
	return ctx, span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
