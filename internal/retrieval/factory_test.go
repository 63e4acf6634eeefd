package retrieval

import (
	"testing"

	"github.com/hyperjump/tutorly/internal/config"
)

func TestNewRetriever(t *testing.T) {
	src := &fakeSource{}

	r, err := NewRetriever(config.RetrievalConfig{Strategy: config.StrategyInProcess, SubstringBonus: 0.2}, src, nil, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != "inprocess" {
		t.Errorf("name = %s", r.Name())
	}

	if _, err := NewRetriever(config.RetrievalConfig{Strategy: "bogus"}, src, nil, 2, nil); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestNewRetriever_delegated(t *testing.T) {
	cfg := config.RetrievalConfig{
		Strategy: config.StrategyDelegated,
		Function: "match_documents_filtered",
	}
	if _, err := NewRetriever(cfg, &fakeSource{}, nil, 2, nil); err == nil {
		t.Error("expected error without a database connection")
	}

	r, err := NewRetriever(cfg, &fakeSource{}, &fakeQuerier{}, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if r.Name() != "delegated" {
		t.Errorf("name = %s", r.Name())
	}
}

func TestNewRetriever_negativeBonusDisabled(t *testing.T) {
	r, err := NewRetriever(config.RetrievalConfig{Strategy: config.StrategyInProcess, SubstringBonus: -1}, &fakeSource{}, nil, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if ip := r.(*InProcessRetriever); ip.scorer.SubstringBonus != 0 {
		t.Errorf("bonus = %v, want 0", ip.scorer.SubstringBonus)
	}
}
