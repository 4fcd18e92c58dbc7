package voiceai

import "context"

// Fake is a scripted Client for handler tests.
type Fake struct {
	StartSessionFunc    func(ctx context.Context, req StartSessionRequest) (StartSessionResponse, error)
	GetAssistantFunc    func(ctx context.Context, assistantID string) (Assistant, error)
	UpdateAssistantFunc func(ctx context.Context, assistantID string, req UpdateAssistantRequest) (Assistant, error)

	// StartedWith records every StartSession request, so tests can assert on
	// the metadata bag that was sent.
	StartedWith []StartSessionRequest
}

func (f *Fake) StartSession(ctx context.Context, req StartSessionRequest) (StartSessionResponse, error) {
	f.StartedWith = append(f.StartedWith, req)
	if f.StartSessionFunc == nil {
		return StartSessionResponse{SessionID: "fake-session", StreamURL: "wss://fake.example.com/stream"}, nil
	}
	return f.StartSessionFunc(ctx, req)
}

func (f *Fake) GetAssistant(ctx context.Context, assistantID string) (Assistant, error) {
	if f.GetAssistantFunc == nil {
		return Assistant{ID: assistantID}, nil
	}
	return f.GetAssistantFunc(ctx, assistantID)
}

func (f *Fake) UpdateAssistant(ctx context.Context, assistantID string, req UpdateAssistantRequest) (Assistant, error) {
	if f.UpdateAssistantFunc == nil {
		return Assistant{ID: assistantID}, nil
	}
	return f.UpdateAssistantFunc(ctx, assistantID, req)
}
