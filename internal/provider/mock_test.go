package provider

import (
	"context"

	"github.com/sells-group/outreach-cli/pkg/dataforseo"
	"github.com/sells-group/outreach-cli/pkg/gemini"
	"github.com/sells-group/outreach-cli/pkg/gmail"
	"github.com/sells-group/outreach-cli/pkg/hunter"
)

type fakeSERP struct {
	items []dataforseo.OrganicItem
	err   error
	got   dataforseo.SearchRequest
}

func (f *fakeSERP) OrganicSearch(_ context.Context, req dataforseo.SearchRequest) ([]dataforseo.OrganicItem, error) {
	f.got = req
	return f.items, f.err
}

type fakeHunter struct {
	search *hunter.DomainSearchResult
	verify *hunter.VerifyResult
	err    error
}

func (f *fakeHunter) DomainSearch(_ context.Context, _ string) (*hunter.DomainSearchResult, error) {
	return f.search, f.err
}

func (f *fakeHunter) VerifyEmail(_ context.Context, _ string) (*hunter.VerifyResult, error) {
	return f.verify, f.err
}

type fakeGemini struct {
	text string
	err  error
	got  gemini.TextRequest
}

func (f *fakeGemini) GenerateText(_ context.Context, req gemini.TextRequest) (*gemini.TextResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &gemini.TextResponse{Text: f.text}, nil
}

func (f *fakeGemini) Close() error { return nil }

type fakeGmail struct {
	got gmail.Message
	err error
}

func (f *fakeGmail) Send(_ context.Context, msg gmail.Message) (*gmail.SentMessage, error) {
	f.got = msg
	if f.err != nil {
		return nil, f.err
	}
	thread := msg.ThreadID
	if thread == "" {
		thread = "thread-new"
	}
	return &gmail.SentMessage{ID: "msg-1", ThreadID: thread}, nil
}
