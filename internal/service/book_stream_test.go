package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"pmcatalog/internal/client/polymarket/clob"
)

func deliver(t *testing.T, svc *BookStreamService, raw string) {
	t.Helper()
	var env clob.Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	svc.handleMessage(context.Background(), env, []byte(raw))
}

func TestHandleMessage_BookPersistsSnapshot(t *testing.T) {
	repo := newStubRepo()
	svc := &BookStreamService{Repo: repo}

	deliver(t, svc, `{
		"event_type": "book",
		"asset_id": "111",
		"timestamp": "1773858600000",
		"bids": [["0.55","100"],["0.54","20"]],
		"asks": [["0.57","50"]]
	}`)

	book, ok := repo.books["111"]
	if !ok {
		t.Fatalf("snapshot not persisted")
	}
	if book.BestBid == nil || book.BestBid.String() != "0.55" {
		t.Fatalf("best bid=%v", book.BestBid)
	}
	if book.BestAsk == nil || book.BestAsk.String() != "0.57" {
		t.Fatalf("best ask=%v", book.BestAsk)
	}
	if book.Mid == nil || book.Mid.String() != "0.56" {
		t.Fatalf("mid=%v", book.Mid)
	}
	if book.Source == nil || *book.Source != "ws" {
		t.Fatalf("source=%v", book.Source)
	}
	if !book.SnapshotTS.Equal(time.UnixMilli(1773858600000).UTC()) {
		t.Fatalf("snapshot ts=%s", book.SnapshotTS)
	}
	var bids [][]string
	if err := json.Unmarshal(book.BidsJSON, &bids); err != nil || len(bids) != 2 {
		t.Fatalf("bids json=%s err=%v", book.BidsJSON, err)
	}
}

func TestHandleMessage_NestedBookAndTokenFallback(t *testing.T) {
	repo := newStubRepo()
	svc := &BookStreamService{Repo: repo}

	deliver(t, svc, `{
		"event_type": "book",
		"token_id": "222",
		"book": {"bids": [["0.40","10"]], "asks": []}
	}`)

	book, ok := repo.books["222"]
	if !ok {
		t.Fatalf("snapshot not persisted")
	}
	if book.BestBid == nil || book.BestBid.String() != "0.4" {
		t.Fatalf("best bid=%v", book.BestBid)
	}
	if book.BestAsk != nil || book.Mid != nil {
		t.Fatalf("empty ask side should leave ask/mid unset: %v %v", book.BestAsk, book.Mid)
	}
	if string(book.AsksJSON) != "[]" {
		t.Fatalf("asks json=%s want []", book.AsksJSON)
	}
	if book.SnapshotTS.IsZero() {
		t.Fatalf("snapshot ts not defaulted")
	}
}

func TestHandleMessage_IgnoresOtherEvents(t *testing.T) {
	repo := newStubRepo()
	svc := &BookStreamService{Repo: repo}

	deliver(t, svc, `{"event_type":"price_change","asset_id":"111","changes":[]}`)
	deliver(t, svc, `{"event_type":"last_trade_price","asset_id":"111","price":"0.5"}`)

	if len(repo.books) != 0 {
		t.Fatalf("non-book events persisted: %v", repo.books)
	}
}

func TestParseStreamTimestamp(t *testing.T) {
	if ts := parseStreamTimestamp("2026-03-15T18:30:00Z"); !ts.Equal(time.Date(2026, 3, 15, 18, 30, 0, 0, time.UTC)) {
		t.Fatalf("rfc3339 ts=%s", ts)
	}
	if ts := parseStreamTimestamp("1773858600"); !ts.Equal(time.Unix(1773858600, 0).UTC()) {
		t.Fatalf("epoch seconds ts=%s", ts)
	}
	if ts := parseStreamTimestamp("1773858600000"); !ts.Equal(time.UnixMilli(1773858600000).UTC()) {
		t.Fatalf("epoch millis ts=%s", ts)
	}
	if ts := parseStreamTimestamp("soon"); !ts.IsZero() {
		t.Fatalf("garbage ts=%s", ts)
	}
}
