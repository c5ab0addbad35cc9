package session

import (
	"errors"
	"testing"
)

func TestNewRegistry(t *testing.T) {
	if NewRegistry(0).Capacity() != DefaultMaxActive {
		t.Error("default capacity")
	}
	r := NewRegistry(2)
	if r.Len() != 0 || r.Free() != 2 {
		t.Errorf("Len() = %d, Free() = %d", r.Len(), r.Free())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(2)
	a := Record{SessionID: MakeID(1, 0)}
	a.Ks[0] = 0x11
	b := Record{SessionID: MakeID(2, 1)}

	if err := r.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := r.Add(a); !errors.Is(err, ErrDuplicateSession) {
		t.Errorf("duplicate Add() error = %v", err)
	}
	if err := r.Add(b); err != nil {
		t.Fatal(err)
	}
	if err := r.Add(Record{SessionID: MakeID(3, 2)}); !errors.Is(err, ErrRegistryFull) {
		t.Errorf("Add() to full registry error = %v", err)
	}

	got, ok := r.Lookup(a.SessionID)
	if !ok || got.Ks[0] != 0x11 {
		t.Errorf("Lookup() = %+v, %v", got, ok)
	}

	got.Streams[0].InputCtr = 42
	if err := r.Update(got); err != nil {
		t.Fatal(err)
	}
	if again, _ := r.Lookup(a.SessionID); again.Streams[0].InputCtr != 42 {
		t.Error("Update not visible")
	}
	if err := r.Update(Record{SessionID: 77}); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Update() of unknown error = %v", err)
	}

	removed, ok := r.Remove(a.SessionID)
	if !ok || removed.Streams[0].InputCtr != 42 {
		t.Errorf("Remove() = %+v, %v", removed, ok)
	}
	if _, ok := r.Remove(a.SessionID); ok {
		t.Error("second Remove() should fail")
	}
	if ids := r.IDs(); len(ids) != 1 || ids[0] != b.SessionID {
		t.Errorf("IDs() = %v", ids)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Error("Clear left records")
	}
}

func TestRecord_Mirror(t *testing.T) {
	s := populated(MakeID(5, 3))
	rec := NewRecord(s)
	if rec.Ks != s.Ks || rec.Riv != s.Riv || rec.StreamCount != 2 || rec.Streams[1].InputCtr != 99 {
		t.Errorf("NewRecord = %+v", rec)
	}
	rec.Streams[1].InputCtr = 1000
	rec.Mirror(s)
	if s.Streams[1].InputCtr != 1000 || s.Streams[1].ContentStreamID != 0x0102 {
		t.Errorf("Mirror result %+v", s.Streams[1])
	}
}
