package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// GoTrue talks to a Supabase auth endpoint.
type GoTrue struct {
	sessionState

	baseURL string
	anonKey string
	client  *http.Client
	log     *slog.Logger
}

func NewGoTrue(baseURL, anonKey string, client *http.Client, log *slog.Logger) *GoTrue {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &GoTrue{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		anonKey: strings.TrimSpace(anonKey),
		client:  client,
		log:     log.With(slog.String("component", "auth")),
	}
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	User        User   `json:"user"`
}

type apiError struct {
	status int
	msg    string
}

func (e *apiError) Error() string {
	if e.msg == "" {
		return http.StatusText(e.status)
	}
	return e.msg
}

func (g *GoTrue) SignUp(ctx context.Context, email, password string) (bool, string) {
	if msg := checkSignUp(email, password); msg != "" {
		return false, msg
	}
	if err := g.post(ctx, "/auth/v1/signup", "", credentials{Email: email, Password: password}, nil); err != nil {
		g.log.Warn("sign up failed", slog.String("email", email), slog.String("error", err.Error()))
		lower := strings.ToLower(err.Error())
		switch {
		case strings.Contains(lower, "not authorized"):
			return false, "This email is not allowed to sign up. Contact an administrator or use another email."
		case strings.Contains(lower, "already registered"):
			return false, "This email is already registered. Use another email or sign in."
		default:
			return false, "Sign-up error: " + err.Error()
		}
	}
	g.log.Info("signed up", slog.String("email", email))
	return true, msgSignedUp
}

func (g *GoTrue) SignIn(ctx context.Context, email, password string) (bool, string) {
	var out tokenResponse
	if err := g.post(ctx, "/auth/v1/token?grant_type=password", "", credentials{Email: email, Password: password}, &out); err != nil {
		g.log.Warn("sign in failed", slog.String("email", email), slog.String("error", err.Error()))
		return false, "Sign-in error: " + err.Error()
	}
	if out.User.Email == "" {
		out.User.Email = email
	}
	g.set(out.User, out.AccessToken)
	g.log.Info("signed in", slog.String("user_id", out.User.ID))
	return true, msgSignedIn
}

func (g *GoTrue) SignOut(ctx context.Context) (bool, string) {
	token := g.accessToken()
	if token != "" {
		if err := g.post(ctx, "/auth/v1/logout", token, nil, nil); err != nil {
			g.log.Warn("sign out failed", slog.String("error", err.Error()))
			return false, "Sign-out error: " + err.Error()
		}
	}
	g.clear()
	return true, msgSignedOut
}

func (g *GoTrue) post(ctx context.Context, path, bearer string, body, out any) error {
	if g.baseURL == "" {
		return fmt.Errorf("auth URL is not configured")
	}
	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.anonKey)
	if bearer == "" {
		bearer = g.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+bearer)

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{status: resp.StatusCode, msg: errorMessage(raw)}
	}
	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("parse auth response: %w", err)
		}
	}
	return nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		ErrorDescription string `json:"error_description"`
		Error            string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return strings.TrimSpace(string(raw))
	}
	for _, s := range []string{body.Msg, body.Message, body.ErrorDescription, body.Error} {
		if strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}
