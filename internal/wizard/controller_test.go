package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/services/store"
)

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) Render(name string, ingredients []string, instructions string) ([]byte, error) {
	args := m.Called(name, ingredients, instructions)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, fileName string, body []byte) (string, error) {
	args := m.Called(ctx, fileName, body)
	return args.String(0), args.Error(1)
}

func (m *MockUploader) PublicURL(fileName string) string {
	return "https://bucket.s3.amazonaws.com/" + fileName
}

// memoryStore keeps records in insertion order and mimics first-match lookup.
type memoryStore struct {
	mu      sync.Mutex
	records []store.Record
	puts    int
	putErr  error
	scanErr error
}

func (s *memoryStore) Put(_ context.Context, rec store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts++
	if s.putErr != nil {
		return s.putErr
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memoryStore) ScanByUser(_ context.Context, userName string) ([]store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scanErr != nil {
		return nil, s.scanErr
	}
	var out []store.Record
	for _, r := range s.records {
		if r.UserName == userName {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memoryStore) FindRecipe(_ context.Context, userName, recipeName string) (*store.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].UserName == userName && s.records[i].RecipeName == recipeName {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, apperrors.NewNotFoundError("레시피 '"+recipeName+"'을(를) 찾을 수 없습니다.", "RECIPE_NOT_FOUND", "")
}

type fixture struct {
	gen      *MockGenerator
	store    *memoryStore
	renderer *MockRenderer
	uploader *MockUploader
	ctrl     *Controller
}

func newFixture() *fixture {
	f := &fixture{
		gen:      new(MockGenerator),
		store:    &memoryStore{},
		renderer: new(MockRenderer),
		uploader: new(MockUploader),
	}
	f.ctrl = NewController(f.gen, f.store, f.renderer, f.uploader)
	f.ctrl.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return f
}

func assertValidation(t *testing.T, err error, message string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
	assert.Equal(t, message, appErr.Message)
}

func TestStart(t *testing.T) {
	f := newFixture()

	s, err := f.ctrl.Start("  철수 ")
	require.NoError(t, err)
	assert.Equal(t, "철수", s.UserName)
	assert.Empty(t, s.Recipes)
	assert.Nil(t, s.Ingredients)

	_, err = f.ctrl.Start("   ")
	assertValidation(t, err, "이름을 입력해주세요")
}

func TestRefreshRecipes(t *testing.T) {
	f := newFixture()
	f.store.records = []store.Record{
		{UserName: "kim", RecipeName: "김치찌개"},
		{UserName: "lee", RecipeName: "불고기"},
		{UserName: "kim", RecipeName: "된장찌개"},
	}
	s := NewSession("kim")

	require.NoError(t, f.ctrl.RefreshRecipes(context.Background(), s))
	assert.Equal(t, []string{"김치찌개", "된장찌개"}, s.Recipes)
}

func TestRefreshRecipes_ErrorKeepsList(t *testing.T) {
	f := newFixture()
	f.store.scanErr = apperrors.NewStoreError("scan failed", "STORE_SCAN_FAILED", errors.New("boom"))
	s := NewSession("kim")
	s.Recipes = []string{"old"}

	err := f.ctrl.RefreshRecipes(context.Background(), s)
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStore))
	assert.Equal(t, []string{"old"}, s.Recipes)
}

func TestFetchIngredients_PopulatesOnlyFirstSlot(t *testing.T) {
	f := newFixture()
	name := gofakeit.BeerName()
	f.gen.On("Generate", mock.Anything, mock.MatchedBy(func(p string) bool {
		return p != "" && len(p) > len(name)
	})).Return("계란, 밀가루, 우유", nil).Once()

	s := NewSession("kim")
	subs, instr := "prev substitute", "prev instructions"
	s.Substitutions = &subs
	s.Instructions = &instr

	answer, err := f.ctrl.FetchIngredients(context.Background(), s, name)
	require.NoError(t, err)

	assert.Equal(t, "계란, 밀가루, 우유", answer)
	require.NotNil(t, s.Ingredients)
	assert.Equal(t, "계란, 밀가루, 우유", *s.Ingredients)
	assert.Equal(t, "prev substitute", *s.Substitutions)
	assert.Equal(t, "prev instructions", *s.Instructions)
	assert.False(t, s.Saved)
	f.gen.AssertExpectations(t)
}

func TestFetchIngredients_RepeatOverwrites(t *testing.T) {
	f := newFixture()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("first", nil).Once()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("second", nil).Once()
	s := NewSession("kim")

	_, err := f.ctrl.FetchIngredients(context.Background(), s, "라면")
	require.NoError(t, err)
	_, err = f.ctrl.FetchIngredients(context.Background(), s, "라면")
	require.NoError(t, err)

	assert.Equal(t, "second", *s.Ingredients)
	f.gen.AssertNumberOfCalls(t, "Generate", 2)
}

func TestFetchIngredients_GatewayErrorLeavesState(t *testing.T) {
	f := newFixture()
	f.gen.On("Generate", mock.Anything, mock.Anything).
		Return("", apperrors.NewGatewayError(500, "GATEWAY_STATUS", nil))

	s := NewSession("kim")
	prev := "old answer"
	s.Ingredients = &prev

	_, err := f.ctrl.FetchIngredients(context.Background(), s, "라면")

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, "에러 발생: 500", appErr.Message)
	assert.Equal(t, "old answer", *s.Ingredients)
}

func TestValidation_NoGatewayCall(t *testing.T) {
	tests := []struct {
		name    string
		call    func(*Controller, *Session) error
		message string
	}{
		{
			name: "ingredients without recipe name",
			call: func(c *Controller, s *Session) error {
				_, err := c.FetchIngredients(context.Background(), s, " ")
				return err
			},
			message: "요리명을 입력해주세요.",
		},
		{
			name: "substitute without missing ingredient",
			call: func(c *Controller, s *Session) error {
				_, err := c.FetchSubstitute(context.Background(), s, "라면", "")
				return err
			},
			message: "요리명과 부족한 재료를 입력해주세요.",
		},
		{
			name: "substitute without recipe name",
			call: func(c *Controller, s *Session) error {
				_, err := c.FetchSubstitute(context.Background(), s, "", "파")
				return err
			},
			message: "요리명과 부족한 재료를 입력해주세요.",
		},
		{
			name: "instructions with blank list",
			call: func(c *Controller, s *Session) error {
				_, err := c.FetchInstructions(context.Background(), s, "라면", " , ,")
				return err
			},
			message: "최종 재료 목록을 입력해주세요.",
		},
		{
			name: "instructions without recipe name",
			call: func(c *Controller, s *Session) error {
				_, err := c.FetchInstructions(context.Background(), s, "", "면, 스프")
				return err
			},
			message: "최종 재료 목록을 입력해주세요.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			s := NewSession("kim")

			assertValidation(t, tt.call(f.ctrl, s), tt.message)
			assert.Equal(t, Form{}, s.Form)
			assert.Nil(t, s.Ingredients)
			assert.Nil(t, s.Substitutions)
			assert.Nil(t, s.Instructions)
			f.gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
		})
	}
}

func TestFetchSubstitute(t *testing.T) {
	f := newFixture()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("대파 대신 쪽파", nil).Once()
	s := NewSession("kim")

	answer, err := f.ctrl.FetchSubstitute(context.Background(), s, "라면", "대파")
	require.NoError(t, err)
	assert.Equal(t, "대파 대신 쪽파", answer)
	assert.Equal(t, "대파 대신 쪽파", *s.Substitutions)
	assert.Nil(t, s.Ingredients)
	assert.Equal(t, "대파", s.Form.MissingIngredient)
}

func TestFetchInstructions(t *testing.T) {
	f := newFixture()
	f.gen.On("Generate", mock.Anything, mock.Anything).Return("물을 끓인다", nil).Once()
	s := NewSession("kim")

	_, err := f.ctrl.FetchInstructions(context.Background(), s, "라면", "면, 스프")
	require.NoError(t, err)
	assert.Equal(t, "물을 끓인다", *s.Instructions)
	assert.Equal(t, "면, 스프", s.Form.FinalIngredients)
}

func TestSave_EmptyIngredientsDoesNothing(t *testing.T) {
	f := newFixture()
	s := NewSession("kim")
	instr := "섞어서 굽는다"
	s.Instructions = &instr

	_, err := f.ctrl.Save(context.Background(), s, "팬케이크", "  ")

	assertValidation(t, err, "레시피 저장에 필요한 정보를 입력해주세요.")
	assert.Equal(t, Form{}, s.Form)
	assert.Zero(t, f.store.puts)
	f.renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	f.uploader.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, s.Saved)
	assert.Empty(t, s.Recipes)
}

func TestSave_RequiresInstructions(t *testing.T) {
	f := newFixture()
	s := NewSession("kim")

	_, err := f.ctrl.Save(context.Background(), s, "팬케이크", "에그, 밀가루")

	assertValidation(t, err, "레시피 저장에 필요한 정보를 입력해주세요.")
	assert.Zero(t, f.store.puts)
}

func TestSave_RoundTrip(t *testing.T) {
	f := newFixture()
	pdf := []byte("%PDF-1.3")
	f.renderer.On("Render", "팬케이크", []string{"에그", "밀가루"}, "섞어서 굽는다").Return(pdf, nil).Once()
	f.uploader.On("Upload", mock.Anything, "팬케이크.pdf", pdf).
		Return("https://bucket.s3.amazonaws.com/팬케이크.pdf", nil).Once()

	s := NewSession("kim")
	instr := "섞어서 굽는다"
	s.Instructions = &instr

	res, err := f.ctrl.Save(context.Background(), s, "팬케이크", "에그, 밀가루")
	require.NoError(t, err)

	assert.Equal(t, "https://bucket.s3.amazonaws.com/팬케이크.pdf", res.URL)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/팬케이크.pdf", res.Record.PDFURL)
	assert.GreaterOrEqual(t, res.Record.RecipeID, 1)
	assert.LessOrEqual(t, res.Record.RecipeID, 255)
	assert.NotEmpty(t, res.Record.RecordID)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), res.Record.CreatedAt)
	assert.True(t, s.Saved)
	assert.Equal(t, []string{"팬케이크"}, s.Recipes)

	got, err := f.ctrl.Lookup(context.Background(), s, "팬케이크")
	require.NoError(t, err)
	assert.Equal(t, []string{"에그", "밀가루"}, got.Ingredients)
	assert.Equal(t, "섞어서 굽는다", got.Instructions)

	f.renderer.AssertExpectations(t)
	f.uploader.AssertExpectations(t)
}

func TestSave_StoreErrorStopsSequence(t *testing.T) {
	f := newFixture()
	f.store.putErr = apperrors.NewStoreError("put failed", "STORE_PUT_FAILED", errors.New("denied"))
	s := NewSession("kim")
	instr := "굽는다"
	s.Instructions = &instr

	_, err := f.ctrl.Save(context.Background(), s, "빵", "밀가루")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeStore))
	f.renderer.AssertNotCalled(t, "Render", mock.Anything, mock.Anything, mock.Anything)
	assert.False(t, s.Saved)
	assert.Empty(t, s.Recipes)
}

func TestSave_UploadErrorKeepsRecord(t *testing.T) {
	f := newFixture()
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return([]byte("pdf"), nil)
	f.uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return("", apperrors.NewUploadError("upload failed", "UPLOAD_FAILED", errors.New("denied")))
	s := NewSession("kim")
	instr := "굽는다"
	s.Instructions = &instr

	_, err := f.ctrl.Save(context.Background(), s, "빵", "밀가루")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUpload))
	assert.Equal(t, 1, f.store.puts)
	assert.False(t, s.Saved)
	assert.Empty(t, s.Recipes)
}

func TestSave_KeepsSlots(t *testing.T) {
	f := newFixture()
	f.renderer.On("Render", mock.Anything, mock.Anything, mock.Anything).Return([]byte("pdf"), nil)
	f.uploader.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return("u", nil)
	s := NewSession("kim")
	ing, instr := "재료", "굽는다"
	s.Ingredients = &ing
	s.Instructions = &instr

	_, err := f.ctrl.Save(context.Background(), s, "빵", "밀가루")
	require.NoError(t, err)

	assert.Equal(t, "재료", *s.Ingredients)
	assert.Equal(t, "굽는다", *s.Instructions)
}

func TestLookup_FirstMatchWins(t *testing.T) {
	f := newFixture()
	f.store.records = []store.Record{
		{UserName: "kim", RecipeName: "빵", Instructions: "first"},
		{UserName: "kim", RecipeName: "빵", Instructions: "second"},
	}

	rec, err := f.ctrl.Lookup(context.Background(), NewSession("kim"), "빵")
	require.NoError(t, err)
	assert.Equal(t, "first", rec.Instructions)
}

func TestLookup_NotFound(t *testing.T) {
	f := newFixture()

	_, err := f.ctrl.Lookup(context.Background(), NewSession("kim"), "없는요리")

	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeNotFound))
	assert.Contains(t, err.Error(), "없는요리")
}

func TestParseIngredients(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"에그, 밀가루", []string{"에그", "밀가루"}},
		{"  a ,b,, c ", []string{"a", "b", "c"}},
		{"", []string{}},
		{" , ", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIngredients(tt.in), tt.in)
	}
}
