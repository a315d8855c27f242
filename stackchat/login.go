package stackchat

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/onnwee/chatkeeper/telemetry"
)

// LoginStage names one step of the login pipeline.
type LoginStage string

const (
	StageFetchLoginPage    LoginStage = "fetch_login_page"
	StageSubmitCredentials LoginStage = "submit_credentials"
	StageCheckActivation   LoginStage = "check_activation"
	StageFetchHome         LoginStage = "fetch_home"
	StageValidate          LoginStage = "validate"
)

// loginState is threaded through the stages; each stage reads what earlier ones left.
type loginState struct {
	loginFkey string
	submitted *goquery.Document
	fkey      string
	userID    int64
}

type loginStep struct {
	stage LoginStage
	run   func(ctx context.Context, st *loginState) error
}

// Connect logs in and resolves the Connected signal exactly once. The stages run
// strictly in order and the first failure ends the pipeline; nothing is retried.
// A second call returns ErrAlreadyConnecting.
func (s *Session) Connect(ctx context.Context, account string) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyConnecting
	}
	s.mu.Lock()
	s.account = account
	s.mu.Unlock()

	telemetry.RecordLoginAttempt()
	slog.Info("connecting to chat", slog.String("account", account), slog.String("component", "stackchat"))

	st, err := s.runLogin(ctx)
	if err == nil {
		s.mu.Lock()
		s.fkey = st.fkey
		s.userID = st.userID
		s.mu.Unlock()
		slog.Info("connected to chat", slog.Int64("user_id", st.userID), slog.String("component", "stackchat"))
	} else {
		slog.Error("chat login failed", slog.Any("err", err), slog.String("component", "stackchat"))
	}
	telemetry.SetChatConnected(err == nil)

	s.connErr = err
	close(s.connected)
	return err
}

func (s *Session) runLogin(ctx context.Context) (*loginState, error) {
	steps := []loginStep{
		{StageFetchLoginPage, s.fetchLoginPage},
		{StageSubmitCredentials, s.submitCredentials},
		{StageCheckActivation, checkActivation},
		{StageFetchHome, s.fetchHome},
		{StageValidate, validateLogin},
	}
	st := &loginState{}
	for _, step := range steps {
		stepCtx, span := telemetry.StartSpan(ctx, "stackchat", "login."+string(step.stage))
		err := step.run(stepCtx, st)
		if err != nil {
			telemetry.RecordError(span, err)
			span.End()
			telemetry.RecordLoginFailure(string(step.stage))
			var le *LoginError
			if errors.As(err, &le) {
				return nil, err
			}
			return nil, &LoginError{Stage: step.stage, Err: err}
		}
		telemetry.SetSpanSuccess(span)
		span.End()
	}
	return st, nil
}

func (s *Session) fetchLoginPage(ctx context.Context, st *loginState) error {
	doc, err := s.FetchDocument(ctx, Request{URL: s.endpoints.Login})
	if err != nil {
		return err
	}
	st.loginFkey = fkeyValue(doc)
	if st.loginFkey == "" {
		return ErrMissingLoginFkey
	}
	slog.Info("got login fkey", slog.String("component", "stackchat"))
	return nil
}

func (s *Session) submitCredentials(ctx context.Context, st *loginState) error {
	form := url.Values{}
	form.Set("fkey", st.loginFkey)
	form.Set("email", s.email)
	form.Set("password", s.password)
	// the login form rejects posts missing these, even empty
	for _, k := range []string{"ssrc", "oauth_version", "oauth_server", "openid_username", "openid_identifier"} {
		form.Set(k, "")
	}
	doc, err := s.FetchDocument(ctx, Request{Method: http.MethodPost, URL: s.endpoints.Login, Form: form})
	if err != nil {
		return err
	}
	st.submitted = doc
	return nil
}

// checkActivation fails when the site asks to create a profile first; the account must be
// activated by hand, so this is terminal.
func checkActivation(_ context.Context, st *loginState) error {
	if st.submitted != nil && st.submitted.Find("#confirm-submit").Length() > 0 {
		return ErrAccountInactive
	}
	slog.Info("logged in to stack exchange", slog.String("component", "stackchat"))
	return nil
}

func (s *Session) fetchHome(ctx context.Context, st *loginState) error {
	doc, err := s.FetchDocument(ctx, Request{URL: s.endpoints.Chat + "/"})
	if err != nil {
		return err
	}
	st.fkey = fkeyValue(doc)
	href, _ := doc.Find(".topbar-menu-links a").First().Attr("href")
	st.userID = pathSegmentID(href, 2)
	return nil
}

func validateLogin(_ context.Context, st *loginState) error {
	if st.userID == 0 {
		return ErrMissingUserID
	}
	if st.fkey == "" {
		return ErrMissingFkey
	}
	return nil
}

func fkeyValue(doc *goquery.Document) string {
	v, _ := doc.Find("[name=fkey]").First().Attr("value")
	return strings.TrimSpace(v)
}
