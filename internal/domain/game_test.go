package domain

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDecodeGameState_EmptyBlobDefaults(t *testing.T) {
	state, err := DecodeGameState(nil)
	if err != nil {
		t.Fatalf("DecodeGameState() error = %v", err)
	}
	if state.FEN != NewGameState().FEN {
		t.Errorf("expected starting position, got %s", state.FEN)
	}
	if state.Turn != "w" {
		t.Errorf("expected white to move, got %s", state.Turn)
	}
	if state.Moves == nil {
		t.Error("expected non-nil move list")
	}
}

func TestDecodeGameState_FillsMissingFields(t *testing.T) {
	state, err := DecodeGameState(datatypes.JSON(`{"turn":"x"}`))
	if err != nil {
		t.Fatalf("DecodeGameState() error = %v", err)
	}
	if state.Turn != "w" {
		t.Errorf("expected invalid turn defaulted to w, got %s", state.Turn)
	}
	if state.FEN == "" {
		t.Error("expected FEN defaulted")
	}
	if state.Moves == nil {
		t.Error("expected non-nil move list")
	}
}

func TestDecodeGameState_RejectsCorruptBlob(t *testing.T) {
	if _, err := DecodeGameState(datatypes.JSON(`{`)); err == nil {
		t.Error("expected error for corrupt blob")
	}
}

func TestGameState_EncodeRoundTrip(t *testing.T) {
	original := GameState{FEN: "8/8/8/8/8/8/8/K6k w - - 0 1", Turn: "w", Moves: []string{"e2e4"}}

	raw, err := original.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	decoded, err := DecodeGameState(raw)
	if err != nil {
		t.Fatalf("DecodeGameState() error = %v", err)
	}
	if decoded.FEN != original.FEN || decoded.Turn != original.Turn || len(decoded.Moves) != 1 {
		t.Errorf("round trip mismatch: %+v", decoded)
	}
}
