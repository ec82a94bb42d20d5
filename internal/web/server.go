// Package web serves the recipe wizard page and its form actions.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/socialchef/recipewizard/internal/errors"
	"github.com/socialchef/recipewizard/internal/middleware"
	"github.com/socialchef/recipewizard/internal/sentry"
	"github.com/socialchef/recipewizard/internal/session"
	"github.com/socialchef/recipewizard/internal/wizard"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Message kinds, used as CSS classes.
const (
	KindSuccess = "success"
	KindError   = "error"
	KindInfo    = "info"
)

// Message is one inline notice, attached to the stage that produced it.
type Message struct {
	Stage string
	Kind  string
	Text  string
}

// LookupView is a stored recipe shown under the recipe list.
type LookupView struct {
	Name         string
	Ingredients  string
	Instructions string
}

type pageData struct {
	Session  *wizard.Session
	Messages []Message
	Lookup   *LookupView
}

func (p *pageData) add(stage, kind, text string) {
	p.Messages = append(p.Messages, Message{Stage: stage, Kind: kind, Text: text})
}

// captureError forwards unexpected failures to Sentry.
var captureError = sentry.CaptureError

// addError shows err inline. AppErrors show their message, anything else a
// generic line. Non-operational and unknown errors are reported to Sentry.
func (p *pageData) addError(ctx context.Context, stage string, err error) {
	text := "요청을 처리하지 못했습니다. 다시 시도해주세요."
	if appErr, ok := apperrors.As(err); ok {
		text = appErr.Message
		if appErr.Type != apperrors.ErrorTypeValidation {
			slog.WarnContext(ctx, "Wizard action failed",
				"stage", stage,
				"error_code", appErr.Code(),
				"error", err)
		}
		if !appErr.IsOperational {
			captureError(err)
		}
	} else {
		slog.ErrorContext(ctx, "Wizard action failed", "stage", stage, "error", err)
		captureError(err)
	}
	p.add(stage, KindError, text)
}

type Server struct {
	ctrl     *wizard.Controller
	sessions *session.Registry
	tmpl     *template.Template
}

func NewServer(ctrl *wizard.Controller, sessions *session.Registry) (*Server, error) {
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"stage": func(p *pageData, stage string) []Message {
			var out []Message
			for _, m := range p.Messages {
				if m.Stage == stage {
					out = append(out, m)
				}
			}
			return out
		},
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Server{ctrl: ctrl, sessions: sessions, tmpl: tmpl}, nil
}

// Routes registers the page and its form actions on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/", s.HandleIndex)
	r.Post("/login", s.HandleLogin)
	r.Post("/ingredients", s.HandleIngredients)
	r.Post("/substitute", s.HandleSubstitute)
	r.Post("/instructions", s.HandleInstructions)
	r.Post("/save", s.HandleSave)
	r.Post("/recipes/lookup", s.HandleLookup)
}

// action is the body of a form handler that needs a started session.
type action func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData)

// withSession loads the caller's session under its lock, runs fn, stores the
// session back and renders the page. Without a session the login form is shown.
func (s *Server) withSession(fn action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, ok := middleware.GetSessionID(ctx)
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		unlock := s.sessions.Lock(id)
		defer unlock()

		sess, err := s.sessions.Load(ctx, id)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		page := &pageData{Session: sess}
		if sess == nil {
			s.render(w, r, page)
			return
		}

		if err := r.ParseForm(); err != nil {
			page.addError(ctx, "", apperrors.NewValidationError("잘못된 요청입니다.", "BAD_FORM", ""))
			s.render(w, r, page)
			return
		}

		fn(ctx, r, sess, page)

		if err := s.sessions.Save(ctx, id, sess); err != nil {
			slog.ErrorContext(ctx, "Failed to save session", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		s.render(w, r, page)
	}
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page *pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index", page); err != nil {
		slog.ErrorContext(r.Context(), "Failed to render template", "template", "index", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// HandleIndex shows the page, reloading the user's recipe list from the store.
func (s *Server) HandleIndex(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, _ *http.Request, sess *wizard.Session, page *pageData) {
		if err := s.ctrl.RefreshRecipes(ctx, sess); err != nil {
			page.addError(ctx, "", err)
		}
	})(w, r)
}

// HandleLogin starts a session for the submitted user name.
func (s *Server) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := middleware.GetSessionID(ctx)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	unlock := s.sessions.Lock(id)
	defer unlock()

	page := &pageData{}
	sess, err := s.ctrl.Start(r.PostFormValue("user_name"))
	if err != nil {
		page.addError(ctx, "", err)
		s.render(w, r, page)
		return
	}
	if err := s.ctrl.RefreshRecipes(ctx, sess); err != nil {
		page.addError(ctx, "", err)
	}

	if err := s.sessions.Save(ctx, id, sess); err != nil {
		slog.ErrorContext(ctx, "Failed to save session", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	slog.InfoContext(ctx, "Session started", "user_name", sess.UserName, "recipes", len(sess.Recipes))

	page.Session = sess
	s.render(w, r, page)
}

func (s *Server) HandleIngredients(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData) {
		keepForm(r, sess)
		if _, err := s.ctrl.FetchIngredients(ctx, sess, r.PostFormValue("recipe_name")); err != nil {
			page.addError(ctx, wizard.StageIngredients, err)
		}
	})(w, r)
}

func (s *Server) HandleSubstitute(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData) {
		keepForm(r, sess)
		_, err := s.ctrl.FetchSubstitute(ctx, sess, r.PostFormValue("recipe_name"), r.PostFormValue("missing_ingredient"))
		if err != nil {
			page.addError(ctx, wizard.StageSubstitute, err)
		}
	})(w, r)
}

func (s *Server) HandleInstructions(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData) {
		keepForm(r, sess)
		_, err := s.ctrl.FetchInstructions(ctx, sess, r.PostFormValue("recipe_name"), r.PostFormValue("final_ingredients"))
		if err != nil {
			page.addError(ctx, wizard.StageInstructions, err)
		}
	})(w, r)
}

func (s *Server) HandleSave(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData) {
		keepForm(r, sess)
		res, err := s.ctrl.Save(ctx, sess, r.PostFormValue("recipe_name"), r.PostFormValue("final_ingredients"))
		if err != nil {
			page.addError(ctx, wizard.StageSave, err)
			return
		}
		page.add(wizard.StageSave, KindSuccess,
			fmt.Sprintf("레시피 '%s'이(가) 성공적으로 저장되었습니다.", res.Record.RecipeName))
		page.add(wizard.StageSave, KindSuccess,
			fmt.Sprintf("레시피 PDF가 S3에 저장되었습니다: %s", res.URL))
	})(w, r)
}

// HandleLookup shows the stored recipe whose name was clicked.
func (s *Server) HandleLookup(w http.ResponseWriter, r *http.Request) {
	s.withSession(func(ctx context.Context, r *http.Request, sess *wizard.Session, page *pageData) {
		name := r.PostFormValue("recipe_name")
		rec, err := s.ctrl.Lookup(ctx, sess, name)
		if err != nil {
			page.addError(ctx, wizard.StageLookup, err)
			return
		}
		page.Lookup = &LookupView{
			Name:         rec.RecipeName,
			Ingredients:  strings.Join(rec.Ingredients, ", "),
			Instructions: rec.Instructions,
		}
	})(w, r)
}

// keepForm remembers every submitted field, including the ones the pressed
// button does not use, so the page shows what the user typed.
func keepForm(r *http.Request, sess *wizard.Session) {
	if v, ok := r.PostForm["recipe_name"]; ok {
		sess.Form.RecipeName = strings.TrimSpace(v[0])
	}
	if v, ok := r.PostForm["missing_ingredient"]; ok {
		sess.Form.MissingIngredient = strings.TrimSpace(v[0])
	}
	if v, ok := r.PostForm["final_ingredients"]; ok {
		sess.Form.FinalIngredients = strings.TrimSpace(v[0])
	}
}
