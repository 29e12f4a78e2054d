package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gbconnect/internal/models"
	"gbconnect/internal/repositories/repotest"
)

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

type recordingEmail struct {
	mu   sync.Mutex
	sent []sentEmail
	fail bool
}

func (e *recordingEmail) SendEmail(to, subject, msg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.fail {
		return errors.New("smtp down")
	}
	e.sent = append(e.sent, sentEmail{To: to, Subject: subject, Body: msg})
	return nil
}

func (e *recordingEmail) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sent)
}

func (e *recordingEmail) sentTo(to string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, s := range e.sent {
		if s.To == to {
			n++
		}
	}
	return n
}

func (e *recordingEmail) bodiesTo(to string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []string
	for _, s := range e.sent {
		if s.To == to {
			out = append(out, s.Body)
		}
	}
	return out
}

type stubGenerator struct {
	replies []string
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "", nil
	}
	reply := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return reply, nil
}

func newUser(t *testing.T, users *repotest.Users, name, email, role string) *models.User {
	t.Helper()
	u := &models.User{Name: name, Email: email, Role: role, Verified: true, AuthProvider: models.AuthProviderLocal}
	if _, err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}
