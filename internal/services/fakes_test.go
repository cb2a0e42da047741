package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mwanafrika/mwanafrika-backend/internal/clients/gemini"
)

type fakeAI struct {
	mu sync.Mutex

	text    string
	jsonOut string
	err     error

	lastSystem string
	lastTurns  []gemini.Turn
	lastUser   string
	calls      int
}

func (f *fakeAI) GenerateText(ctx context.Context, system string, turns []gemini.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSystem = system
	f.lastTurns = append([]gemini.Turn(nil), turns...)
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeAI) GenerateJSON(ctx context.Context, system string, user string, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSystem = system
	f.lastUser = user
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(gemini.StripCodeFences(f.jsonOut)), out)
}
